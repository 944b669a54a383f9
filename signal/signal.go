package signal

import (
	"fmt"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
)

// Arg declares one argument in a signal schema: a name, a kind, and an
// optional default. Arguments without a default are required.
type Arg struct {
	Name        string
	Description string
	Kind        option.Kind
	Default     *option.Value
}

// Required reports whether the argument must be supplied by the caller.
func (a Arg) Required() bool { return a.Default == nil }

// Schema is the ordered argument declaration of a signal.
type Schema []Arg

// Required declares a required argument.
func Required(name, description string, kind option.Kind) Arg {
	return Arg{Name: name, Description: description, Kind: kind}
}

// Optional declares an argument with a default applied when omitted.
func Optional(name, description string, def option.Value) Arg {
	return Arg{Name: name, Description: description, Kind: def.Kind(), Default: &def}
}

// validate checks the schema declaration itself: unique names, matching
// default kinds. Called once at registration.
func (s Schema) validate() error {
	seen := make(map[string]bool, len(s))
	for _, a := range s {
		if a.Name == "" {
			return fmt.Errorf("argument with empty name: %w", kerrors.ErrInvalidType)
		}
		if seen[a.Name] {
			return fmt.Errorf("argument %q declared twice: %w", a.Name, kerrors.ErrDuplicateRegistration)
		}
		seen[a.Name] = true
		if a.Default != nil && a.Default.Kind() != a.Kind {
			return fmt.Errorf("argument %q default is %s, declared %s: %w",
				a.Name, a.Default.Kind(), a.Kind, kerrors.ErrInvalidType)
		}
	}
	return nil
}

// DecodeNamed checks by-key arguments against the schema and fills defaults
// for omitted optional arguments. Unknown keys, missing required arguments
// and kind mismatches fail ErrArgumentMismatch; the input is never partially
// applied.
func (s Schema) DecodeNamed(byKey map[string]option.Value) (Values, error) {
	for key := range byKey {
		if !s.declares(key) {
			return Values{}, fmt.Errorf("unexpected argument %q: %w", key, kerrors.ErrArgumentMismatch)
		}
	}
	vals := make(map[string]option.Value, len(s))
	for _, a := range s {
		v, ok := byKey[a.Name]
		if !ok {
			if a.Required() {
				return Values{}, fmt.Errorf("missing required argument %q: %w", a.Name, kerrors.ErrArgumentMismatch)
			}
			vals[a.Name] = *a.Default
			continue
		}
		if v.Kind() != a.Kind {
			return Values{}, fmt.Errorf("argument %q is %s, want %s: %w",
				a.Name, v.Kind(), a.Kind, kerrors.ErrArgumentMismatch)
		}
		vals[a.Name] = v
	}
	return Values{schema: s, vals: vals}, nil
}

// DecodePositional matches arguments to the schema by position, filling
// defaults for omitted trailing optional arguments.
func (s Schema) DecodePositional(args []option.Value) (Values, error) {
	if len(args) > len(s) {
		return Values{}, fmt.Errorf("%d arguments for %d declared: %w",
			len(args), len(s), kerrors.ErrArgumentMismatch)
	}
	vals := make(map[string]option.Value, len(s))
	for i, a := range s {
		if i >= len(args) {
			if a.Required() {
				return Values{}, fmt.Errorf("missing required argument %q: %w", a.Name, kerrors.ErrArgumentMismatch)
			}
			vals[a.Name] = *a.Default
			continue
		}
		if args[i].Kind() != a.Kind {
			return Values{}, fmt.Errorf("argument %q is %s, want %s: %w",
				a.Name, args[i].Kind(), a.Kind, kerrors.ErrArgumentMismatch)
		}
		vals[a.Name] = args[i]
	}
	return Values{schema: s, vals: vals}, nil
}

func (s Schema) declares(name string) bool {
	for _, a := range s {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Values is a fully decoded argument set: every declared argument present,
// defaults applied. Accessors fail ErrArgumentMismatch on a wrong-kind read
// so handler bugs surface as dispatch errors rather than zero values.
//
// For open signals no schema exists; Values then carries the caller's fields
// verbatim, in caller order.
type Values struct {
	schema Schema
	vals   map[string]option.Value
	fields []Field
}

// Get returns the named argument value.
func (v Values) Get(name string) (option.Value, error) {
	val, ok := v.vals[name]
	if !ok {
		return option.Value{}, fmt.Errorf("argument %q not declared: %w", name, kerrors.ErrArgumentMismatch)
	}
	return val, nil
}

// Bool returns a bool argument.
func (v Values) Bool(name string) (bool, error) {
	val, err := v.Get(name)
	if err != nil {
		return false, err
	}
	b, err := val.Bool()
	if err != nil {
		return false, fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return b, nil
}

// Int returns an integer argument.
func (v Values) Int(name string) (int64, error) {
	val, err := v.Get(name)
	if err != nil {
		return 0, err
	}
	i, err := val.Int()
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return i, nil
}

// UInt returns an unsigned integer argument.
func (v Values) UInt(name string) (uint64, error) {
	val, err := v.Get(name)
	if err != nil {
		return 0, err
	}
	u, err := val.UInt()
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return u, nil
}

// Real returns a float argument.
func (v Values) Real(name string) (float64, error) {
	val, err := v.Get(name)
	if err != nil {
		return 0, err
	}
	r, err := val.Real()
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return r, nil
}

// Str returns a string argument.
func (v Values) Str(name string) (string, error) {
	val, err := v.Get(name)
	if err != nil {
		return "", err
	}
	s, err := val.Str()
	if err != nil {
		return "", fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return s, nil
}

// URIString returns a URI argument as a string.
func (v Values) URIString(name string) (string, error) {
	val, err := v.Get(name)
	if err != nil {
		return "", err
	}
	s, err := val.URIString()
	if err != nil {
		return "", fmt.Errorf("argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	return s, nil
}

// Names returns the argument names: schema order for declared signals,
// caller order for open ones.
func (v Values) Names() []string {
	if v.schema == nil && len(v.fields) > 0 {
		names := make([]string, len(v.fields))
		for i, f := range v.fields {
			names[i] = f.Name
		}
		return names
	}
	names := make([]string, len(v.schema))
	for i, a := range v.schema {
		names[i] = a.Name
	}
	return names
}

// Fields returns the arguments in caller order. Only open signals see
// caller order; schema-decoded values return the schema order.
func (v Values) Fields() []Field {
	if v.fields != nil {
		return v.fields
	}
	fields := make([]Field, len(v.schema))
	for i, a := range v.schema {
		fields[i] = Field{Name: a.Name, Value: v.vals[a.Name]}
	}
	return fields
}

// Len returns the number of arguments.
func (v Values) Len() int {
	if v.schema == nil {
		return len(v.fields)
	}
	return len(v.schema)
}

// Field is one named value in a signal result.
type Field struct {
	Name  string
	Value option.Value
}

// Result is the ordered payload a handler returns; the wire layer renders
// each field as one reply argument.
type Result []Field

// R is shorthand for building result fields.
func R(name string, v option.Value) Field {
	return Field{Name: name, Value: v}
}
