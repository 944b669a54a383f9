package signal

import (
	"context"
	"fmt"
	"sort"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
)

// Handler executes one signal invocation against the owning instance.
// Handlers run to completion once invoked; a handler that wants to be
// interruptible polls ctx itself.
type Handler func(ctx context.Context, args Values) (Result, error)

// Signal is one registered operation on one component instance.
type Signal struct {
	name        string
	description string
	schema      Schema
	returns     Schema
	handler     Handler
	readOnly    bool
	hidden      bool
	open        bool
}

// Name returns the signal name.
func (s *Signal) Name() string { return s.name }

// Description returns the human-readable description.
func (s *Signal) Description() string { return s.description }

// Schema returns the argument declaration.
func (s *Signal) Schema() Schema { return s.schema }

// IsReadOnly reports whether the signal may run under a shared lock.
func (s *Signal) IsReadOnly() bool { return s.readOnly }

// IsHidden reports whether the signal is excluded from listings.
func (s *Signal) IsHidden() bool { return s.hidden }

// ReadOnly marks the signal as a pure read: the kernel dispatches it under
// the shared lock so concurrent reads never queue behind each other.
func (s *Signal) ReadOnly() *Signal {
	s.readOnly = true
	return s
}

// Hide excludes the signal from list_signals output; it stays invocable.
func (s *Signal) Hide() *Signal {
	s.hidden = true
	return s
}

// IsOpen reports whether the signal accepts arbitrary named arguments.
func (s *Signal) IsOpen() bool { return s.open }

// Open marks the signal as schema-free: any named arguments pass through to
// the handler undecoded, in caller order. Declaring both a schema and Open
// is a registration bug.
func (s *Signal) Open() *Signal {
	if len(s.schema) > 0 {
		panic(fmt.Sprintf("signal %q declares a schema and Open", s.name))
	}
	s.open = true
	return s
}

// Returns declares the result schema for introspection.
func (s *Signal) Returns(returns Schema) *Signal {
	s.returns = returns
	return s
}

// ArgInfo describes one schema argument for remote display.
type ArgInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Info describes one signal for remote display.
type Info struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ReadOnly    bool      `json:"read_only,omitempty"`
	Open        bool      `json:"open,omitempty"`
	Args        []ArgInfo `json:"args,omitempty"`
	Returns     []ArgInfo `json:"returns,omitempty"`
}

// Table is the per-instance signal table. Two instances of the same type
// may carry different tables; registration happens per instance, usually in
// the type's constructor. The table performs no locking; the kernel
// serializes mutating dispatch.
type Table struct {
	order []string
	sigs  map[string]*Signal
}

// NewTable returns an empty signal table.
func NewTable() *Table {
	return &Table{sigs: make(map[string]*Signal)}
}

// Register attaches a handler under a name. Registering a name twice on one
// instance fails ErrDuplicateRegistration; a nil handler or an invalid
// schema fails immediately rather than at first invoke.
func (t *Table) Register(name, description string, handler Handler, schema Schema) (*Signal, error) {
	if name == "" {
		return nil, fmt.Errorf("signal name empty: %w", kerrors.ErrInvalidType)
	}
	if handler == nil {
		return nil, fmt.Errorf("signal %q has nil handler: %w", name, kerrors.ErrInvalidType)
	}
	if _, ok := t.sigs[name]; ok {
		return nil, fmt.Errorf("signal %q: %w", name, kerrors.ErrDuplicateRegistration)
	}
	if err := schema.validate(); err != nil {
		return nil, fmt.Errorf("signal %q: %w", name, err)
	}
	sig := &Signal{
		name:        name,
		description: description,
		schema:      schema,
		handler:     handler,
	}
	t.order = append(t.order, name)
	t.sigs[name] = sig
	return sig, nil
}

// MustRegister is Register for statically known signals; it panics on error.
func (t *Table) MustRegister(name, description string, handler Handler, schema Schema) *Signal {
	sig, err := t.Register(name, description, handler, schema)
	if err != nil {
		panic(err)
	}
	return sig
}

// Get returns the named signal.
func (t *Table) Get(name string) (*Signal, bool) {
	s, ok := t.sigs[name]
	return s, ok
}

// Has reports whether the named signal is registered.
func (t *Table) Has(name string) bool {
	_, ok := t.sigs[name]
	return ok
}

// Len returns the number of registered signals.
func (t *Table) Len() int { return len(t.order) }

// InvokeNamed dispatches by-key arguments: lookup, decode with defaults,
// then the handler. Decode failures leave no observable side effect because
// the handler never runs. Open signals receive the keys sorted by name;
// callers that need their own order use Invoke.
func (t *Table) InvokeNamed(ctx context.Context, name string, byKey map[string]option.Value) (Result, error) {
	sig, ok := t.sigs[name]
	if !ok {
		return nil, fmt.Errorf("signal %q: %w", name, kerrors.ErrUnknownSignal)
	}
	if sig.open {
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Name: k, Value: byKey[k]}
		}
		return sig.handler(ctx, Values{vals: byKey, fields: fields})
	}
	args, err := sig.schema.DecodeNamed(byKey)
	if err != nil {
		return nil, fmt.Errorf("signal %q: %w", name, err)
	}
	return sig.handler(ctx, args)
}

// Invoke dispatches ordered named fields, the form frames arrive in. Closed
// signals decode against their schema; open signals receive the fields
// verbatim. Duplicate field names fail ErrArgumentMismatch.
func (t *Table) Invoke(ctx context.Context, name string, fields []Field) (Result, error) {
	sig, ok := t.sigs[name]
	if !ok {
		return nil, fmt.Errorf("signal %q: %w", name, kerrors.ErrUnknownSignal)
	}
	byKey := make(map[string]option.Value, len(fields))
	for _, f := range fields {
		if _, dup := byKey[f.Name]; dup {
			return nil, fmt.Errorf("signal %q: duplicate argument %q: %w", name, f.Name, kerrors.ErrArgumentMismatch)
		}
		byKey[f.Name] = f.Value
	}
	if sig.open {
		return sig.handler(ctx, Values{vals: byKey, fields: fields})
	}
	args, err := sig.schema.DecodeNamed(byKey)
	if err != nil {
		return nil, fmt.Errorf("signal %q: %w", name, err)
	}
	return sig.handler(ctx, args)
}

// InvokePositional dispatches positional arguments.
func (t *Table) InvokePositional(ctx context.Context, name string, args ...option.Value) (Result, error) {
	sig, ok := t.sigs[name]
	if !ok {
		return nil, fmt.Errorf("signal %q: %w", name, kerrors.ErrUnknownSignal)
	}
	decoded, err := sig.schema.DecodePositional(args)
	if err != nil {
		return nil, fmt.Errorf("signal %q: %w", name, err)
	}
	return sig.handler(ctx, decoded)
}

// Describe returns registration-ordered metadata for the visible signals.
func (t *Table) Describe() []Info {
	infos := make([]Info, 0, len(t.order))
	for _, name := range t.order {
		sig := t.sigs[name]
		if sig.hidden {
			continue
		}
		infos = append(infos, Info{
			Name:        sig.name,
			Description: sig.description,
			ReadOnly:    sig.readOnly,
			Open:        sig.open,
			Args:        describeSchema(sig.schema),
			Returns:     describeSchema(sig.returns),
		})
	}
	return infos
}

func describeSchema(s Schema) []ArgInfo {
	if len(s) == 0 {
		return nil
	}
	infos := make([]ArgInfo, len(s))
	for i, a := range s {
		infos[i] = ArgInfo{
			Name:        a.Name,
			Description: a.Description,
			Kind:        a.Kind.String(),
			Required:    a.Required(),
		}
		if a.Default != nil {
			infos[i].Default = a.Default.Format()
		}
	}
	return infos
}
