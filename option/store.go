package option

import (
	"fmt"

	kerrors "github.com/c360/simkernel/errors"
)

// Info is the externally visible description of one option, used by the
// list_options signal and the schema exporter.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind"`
	Default     string   `json:"default"`
	Current     string   `json:"current"`
	Basic       bool     `json:"basic,omitempty"`
	Locked      bool     `json:"locked,omitempty"`
	Allowed     []string `json:"allowed,omitempty"`
	Min         string   `json:"min,omitempty"`
	Max         string   `json:"max,omitempty"`
}

// Store holds a component's options in declaration order. It performs no
// locking of its own; the owning kernel serializes configuration against
// concurrent reads.
type Store struct {
	order []string
	opts  map[string]*Option
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{opts: make(map[string]*Option)}
}

// Add declares an option. Declaring the same name twice fails
// ErrDuplicateRegistration.
func (s *Store) Add(opt *Option) (*Option, error) {
	if _, ok := s.opts[opt.name]; ok {
		return nil, fmt.Errorf("option %q: %w", opt.name, kerrors.ErrDuplicateRegistration)
	}
	s.order = append(s.order, opt.name)
	s.opts[opt.name] = opt
	return opt, nil
}

// MustAdd is Add for statically known declarations; it panics on error.
func (s *Store) MustAdd(opt *Option) *Option {
	o, err := s.Add(opt)
	if err != nil {
		panic(err)
	}
	return o
}

// Get returns the named option.
func (s *Store) Get(name string) (*Option, bool) {
	o, ok := s.opts[name]
	return o, ok
}

// Has reports whether the named option is declared.
func (s *Store) Has(name string) bool {
	_, ok := s.opts[name]
	return ok
}

// Len returns the number of declared options.
func (s *Store) Len() int { return len(s.order) }

// Names returns the option names in declaration order.
func (s *Store) Names() []string {
	return append(s.order[:0:0], s.order...)
}

// Set configures the named option through the full validation pipeline.
// An undeclared name fails ErrUnknownOption.
func (s *Store) Set(name string, v Value) error {
	o, ok := s.opts[name]
	if !ok {
		return fmt.Errorf("option %q: %w", name, kerrors.ErrUnknownOption)
	}
	return o.Set(v)
}

// Value returns the current value of the named option.
func (s *Store) Value(name string) (Value, error) {
	o, ok := s.opts[name]
	if !ok {
		return Value{}, fmt.Errorf("option %q: %w", name, kerrors.ErrUnknownOption)
	}
	return o.cur, nil
}

// Describe returns declaration-ordered metadata for every option.
func (s *Store) Describe() []Info {
	infos := make([]Info, 0, len(s.order))
	for _, name := range s.order {
		o := s.opts[name]
		info := Info{
			Name:        o.name,
			Description: o.description,
			Kind:        o.kind.String(),
			Default:     o.def.Format(),
			Current:     o.cur.Format(),
			Basic:       o.basic,
			Locked:      o.locked,
		}
		for _, a := range o.allowed {
			info.Allowed = append(info.Allowed, a.Format())
		}
		if o.min != nil {
			info.Min = o.min.Format()
		}
		if o.max != nil {
			info.Max = o.max.Format()
		}
		infos = append(infos, info)
	}
	return infos
}

// PropertyInfo describes one property for remote display.
type PropertyInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Properties holds a component's read-only attributes in declaration order.
// Only the owning component mutates them; external readers get snapshots.
type Properties struct {
	order []string
	vals  map[string]Value
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{vals: make(map[string]Value)}
}

// Add declares a property with its initial value. Declaring the same name
// twice fails ErrDuplicateRegistration.
func (p *Properties) Add(name string, v Value) error {
	if _, ok := p.vals[name]; ok {
		return fmt.Errorf("property %q: %w", name, kerrors.ErrDuplicateRegistration)
	}
	p.order = append(p.order, name)
	p.vals[name] = v
	return nil
}

// Update replaces the value of a declared property. The owning component
// calls this from its own handlers to publish computed state.
func (p *Properties) Update(name string, v Value) error {
	if _, ok := p.vals[name]; !ok {
		return fmt.Errorf("property %q: %w", name, kerrors.ErrUnknownProperty)
	}
	p.vals[name] = v
	return nil
}

// Get returns a snapshot of the named property. List payloads are copied so
// the caller never aliases live state.
func (p *Properties) Get(name string) (Value, error) {
	v, ok := p.vals[name]
	if !ok {
		return Value{}, fmt.Errorf("property %q: %w", name, kerrors.ErrUnknownProperty)
	}
	return snapshotValue(v), nil
}

// Has reports whether the named property is declared.
func (p *Properties) Has(name string) bool {
	_, ok := p.vals[name]
	return ok
}

// Len returns the number of declared properties.
func (p *Properties) Len() int { return len(p.order) }

// Names returns the property names in declaration order.
func (p *Properties) Names() []string {
	return append(p.order[:0:0], p.order...)
}

// Describe returns declaration-ordered metadata for every property.
func (p *Properties) Describe() []PropertyInfo {
	infos := make([]PropertyInfo, 0, len(p.order))
	for _, name := range p.order {
		v := p.vals[name]
		infos = append(infos, PropertyInfo{
			Name:  name,
			Kind:  v.Kind().String(),
			Value: v.Format(),
		})
	}
	return infos
}

func snapshotValue(v Value) Value {
	if !v.kind.IsList() {
		return v
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return Value{kind: v.kind, list: cp}
}
