package option

import (
	"fmt"

	kerrors "github.com/c360/simkernel/errors"
)

// Trigger is a callback fired after an option commit. Triggers observe only
// the fully committed value and run in registration order.
type Trigger func()

// Option is one configurable attribute: a declared kind, a default, the
// current value, and optional validation, bound storage, and triggers.
// Options are not safe for concurrent mutation; the owning component's
// kernel serializes configuration.
type Option struct {
	name        string
	description string
	kind        Kind
	def         Value
	cur         Value
	basic       bool
	locked      bool
	wasSet      bool
	min         *Value
	max         *Value
	allowed     []Value
	bind        func(Value)
	triggers    []Trigger
}

// New declares an option. The default must match the declared kind and any
// restriction added later; the current value starts at the default.
func New(name, description string, kind Kind, def Value) (*Option, error) {
	if name == "" {
		return nil, fmt.Errorf("option name empty: %w", kerrors.ErrInvalidType)
	}
	if def.Kind() != kind {
		return nil, fmt.Errorf("option %q default is %s, declared %s: %w",
			name, def.Kind(), kind, kerrors.ErrInvalidType)
	}
	return &Option{
		name:        name,
		description: description,
		kind:        kind,
		def:         def,
		cur:         def,
	}, nil
}

// MustNew is New for statically known declarations; it panics on error.
// Component constructors declare their options with it.
func MustNew(name, description string, kind Kind, def Value) *Option {
	o, err := New(name, description, kind, def)
	if err != nil {
		panic(err)
	}
	return o
}

// Name returns the option name.
func (o *Option) Name() string { return o.name }

// Description returns the human-readable description.
func (o *Option) Description() string { return o.description }

// Kind returns the declared kind.
func (o *Option) Kind() Kind { return o.kind }

// Default returns the declared default value.
func (o *Option) Default() Value { return o.def }

// Value returns the current value.
func (o *Option) Value() Value { return o.cur }

// Basic reports whether the option is marked basic.
func (o *Option) Basic() bool { return o.basic }

// WasSet reports whether the option was successfully configured at least once.
func (o *Option) WasSet() bool { return o.wasSet }

// MarkBasic marks the option as part of the commonly edited subset that
// remote clients list by default.
func (o *Option) MarkBasic() *Option {
	o.basic = true
	return o
}

// Lock makes the option single-assignment: the first successful Set wins and
// every later Set fails ErrLocked.
func (o *Option) Lock() *Option {
	o.locked = true
	return o
}

// Restrict limits the option to an enumerated set of values. For list
// options the restriction applies to each element.
func (o *Option) Restrict(allowed ...Value) *Option {
	o.allowed = append(o.allowed[:0:0], allowed...)
	return o
}

// Range bounds a numeric option inclusively. For list options the bounds
// apply to each element. Bounds of the wrong kind surface as ErrInvalidType
// on the next Set.
func (o *Option) Range(min, max Value) *Option {
	o.min = &min
	o.max = &max
	return o
}

// OnChange appends a trigger fired after each successful commit.
func (o *Option) OnChange(fn Trigger) *Option {
	o.triggers = append(o.triggers, fn)
	return o
}

// BindBool links external bool storage; each commit writes through to ptr.
func (o *Option) BindBool(ptr *bool) *Option {
	o.bind = func(v Value) { *ptr, _ = v.Bool() }
	return o
}

// BindInt links external integer storage.
func (o *Option) BindInt(ptr *int64) *Option {
	o.bind = func(v Value) { *ptr, _ = v.Int() }
	return o
}

// BindUInt links external unsigned integer storage.
func (o *Option) BindUInt(ptr *uint64) *Option {
	o.bind = func(v Value) { *ptr, _ = v.UInt() }
	return o
}

// BindReal links external float storage.
func (o *Option) BindReal(ptr *float64) *Option {
	o.bind = func(v Value) { *ptr, _ = v.Real() }
	return o
}

// BindString links external string storage.
func (o *Option) BindString(ptr *string) *Option {
	o.bind = func(v Value) { *ptr, _ = v.Str() }
	return o
}

// BindURI links external storage holding the URI as a string.
func (o *Option) BindURI(ptr *string) *Option {
	o.bind = func(v Value) { *ptr, _ = v.URIString() }
	return o
}

// Set runs the full configure pipeline: lock check, type check, restriction
// and range validation, commit, write-through, then triggers in order. On
// any validation failure the prior value is retained and no trigger fires.
func (o *Option) Set(v Value) error {
	if o.locked && o.wasSet {
		return fmt.Errorf("option %q: %w", o.name, kerrors.ErrLocked)
	}
	if v.Kind() != o.kind {
		return fmt.Errorf("option %q is %s, got %s: %w", o.name, o.kind, v.Kind(), kerrors.ErrInvalidType)
	}
	if err := o.validate(v); err != nil {
		return err
	}

	o.cur = v
	o.wasSet = true
	if o.bind != nil {
		o.bind(v)
	}
	for _, fn := range o.triggers {
		fn()
	}
	return nil
}

// Reset restores the default value without firing triggers or counting as a
// set for lock purposes.
func (o *Option) Reset() {
	o.cur = o.def
	o.wasSet = false
	if o.bind != nil {
		o.bind(o.def)
	}
}

func (o *Option) validate(v Value) error {
	if o.kind.IsList() {
		elems, err := v.List()
		if err != nil {
			return err
		}
		for i, e := range elems {
			if err := o.validateScalar(e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	}
	return o.validateScalar(v)
}

func (o *Option) validateScalar(v Value) error {
	if len(o.allowed) > 0 {
		ok := false
		for _, a := range o.allowed {
			if a.Equal(v) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("option %q: value %s not in allowed set: %w",
				o.name, v.Format(), kerrors.ErrOutOfRange)
		}
	}
	if o.min != nil {
		c, err := Compare(v, *o.min)
		if err != nil {
			return fmt.Errorf("option %q: %w", o.name, err)
		}
		if c < 0 {
			return fmt.Errorf("option %q: value %s below minimum %s: %w",
				o.name, v.Format(), o.min.Format(), kerrors.ErrOutOfRange)
		}
	}
	if o.max != nil {
		c, err := Compare(v, *o.max)
		if err != nil {
			return fmt.Errorf("option %q: %w", o.name, err)
		}
		if c > 0 {
			return fmt.Errorf("option %q: value %s above maximum %s: %w",
				o.name, v.Format(), o.max.Format(), kerrors.ErrOutOfRange)
		}
	}
	return nil
}
