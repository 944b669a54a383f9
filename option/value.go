package option

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	kerrors "github.com/c360/simkernel/errors"
)

// Kind identifies the declared type of an option, property, or signal
// argument. Scalar kinds match the wire protocol's type tags; list kinds
// carry ordered elements of one scalar kind.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUInt
	KindReal
	KindString
	KindURI
	KindBoolList
	KindIntList
	KindUIntList
	KindRealList
	KindStringList
	KindURIList
)

// String returns the wire name of the kind. List kinds render as "elem[]";
// the wire codec writes them as type="array" with an elem attribute.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindURI:
		return "uri"
	case KindBoolList, KindIntList, KindUIntList, KindRealList, KindStringList, KindURIList:
		return k.Elem().String() + "[]"
	default:
		return "invalid"
	}
}

// IsList reports whether the kind is a list kind.
func (k Kind) IsList() bool {
	return k >= KindBoolList && k <= KindURIList
}

// Elem returns the element kind of a list kind, or KindInvalid for scalars.
func (k Kind) Elem() Kind {
	switch k {
	case KindBoolList:
		return KindBool
	case KindIntList:
		return KindInt
	case KindUIntList:
		return KindUInt
	case KindRealList:
		return KindReal
	case KindStringList:
		return KindString
	case KindURIList:
		return KindURI
	default:
		return KindInvalid
	}
}

// ListOf returns the list kind whose elements are the scalar kind k.
func (k Kind) ListOf() Kind {
	switch k {
	case KindBool:
		return KindBoolList
	case KindInt:
		return KindIntList
	case KindUInt:
		return KindUIntList
	case KindReal:
		return KindRealList
	case KindString:
		return KindStringList
	case KindURI:
		return KindURIList
	default:
		return KindInvalid
	}
}

// ParseKind parses a kind name as it appears on the wire: a scalar tag
// from {bool, int, uint, real, string, uri} or the "elem[]" list form.
func ParseKind(s string) (Kind, error) {
	if elem, ok := strings.CutSuffix(s, "[]"); ok {
		k, err := ParseKind(elem)
		if err != nil {
			return KindInvalid, err
		}
		if k.IsList() {
			return KindInvalid, fmt.Errorf("nested list kind %q: %w", s, kerrors.ErrInvalidType)
		}
		return k.ListOf(), nil
	}
	switch s {
	case "bool":
		return KindBool, nil
	case "int":
		return KindInt, nil
	case "uint":
		return KindUInt, nil
	case "real":
		return KindReal, nil
	case "string":
		return KindString, nil
	case "uri":
		return KindURI, nil
	default:
		return KindInvalid, fmt.Errorf("unknown kind %q: %w", s, kerrors.ErrInvalidType)
	}
}

// Value is a tagged union holding one typed option value. The zero Value has
// KindInvalid and is returned alongside errors. Values are immutable once
// constructed; list accessors return copies so callers never alias internal
// state.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	r    float64
	s    string
	list []Value
}

// Bool constructs a bool value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int constructs an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// UInt constructs an unsigned integer value.
func UInt(v uint64) Value { return Value{kind: KindUInt, u: v} }

// Real constructs a floating point value.
func Real(v float64) Value { return Value{kind: KindReal, r: v} }

// String constructs a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// URI constructs a URI value without validation; use ParseURI for input
// that crosses a trust boundary.
func URI(v string) Value { return Value{kind: KindURI, s: v} }

// ParseURI validates and constructs a URI value.
func ParseURI(v string) (Value, error) {
	if strings.TrimSpace(v) == "" {
		return Value{}, fmt.Errorf("empty uri: %w", kerrors.ErrInvalidType)
	}
	if strings.ContainsAny(v, " \t\n") {
		return Value{}, fmt.Errorf("uri %q contains whitespace: %w", v, kerrors.ErrInvalidType)
	}
	if _, err := url.Parse(v); err != nil {
		return Value{}, fmt.Errorf("uri %q: %v: %w", v, err, kerrors.ErrInvalidType)
	}
	return URI(v), nil
}

// List constructs a list value of the given scalar element kind. Every
// element must already have that kind.
func List(elem Kind, elems ...Value) (Value, error) {
	if elem.IsList() || elem == KindInvalid {
		return Value{}, fmt.Errorf("list element kind %s: %w", elem, kerrors.ErrInvalidType)
	}
	for i, e := range elems {
		if e.kind != elem {
			return Value{}, fmt.Errorf("list element %d is %s, want %s: %w", i, e.kind, elem, kerrors.ErrInvalidType)
		}
	}
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: elem.ListOf(), list: cp}, nil
}

// Ints is a convenience constructor for an int list.
func Ints(vs ...int64) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = Int(v)
	}
	v, _ := List(KindInt, elems...)
	return v
}

// Strings is a convenience constructor for a string list.
func Strings(vs ...string) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = String(v)
	}
	v, _ := List(KindString, elems...)
	return v
}

// Reals is a convenience constructor for a real list.
func Reals(vs ...float64) Value {
	elems := make([]Value, len(vs))
	for i, v := range vs {
		elems[i] = Real(v)
	}
	v, _ := List(KindReal, elems...)
	return v
}

// Kind returns the kind tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value is the zero (invalid) Value.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

func (v Value) kindError(want Kind) error {
	return fmt.Errorf("value is %s, want %s: %w", v.kind, want, kerrors.ErrInvalidType)
}

// Bool returns the bool payload.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.kindError(KindBool)
	}
	return v.b, nil
}

// Int returns the integer payload.
func (v Value) Int() (int64, error) {
	if v.kind != KindInt {
		return 0, v.kindError(KindInt)
	}
	return v.i, nil
}

// UInt returns the unsigned integer payload.
func (v Value) UInt() (uint64, error) {
	if v.kind != KindUInt {
		return 0, v.kindError(KindUInt)
	}
	return v.u, nil
}

// Real returns the floating point payload.
func (v Value) Real() (float64, error) {
	if v.kind != KindReal {
		return 0, v.kindError(KindReal)
	}
	return v.r, nil
}

// Str returns the string payload.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", v.kindError(KindString)
	}
	return v.s, nil
}

// URIString returns the URI payload as a string.
func (v Value) URIString() (string, error) {
	if v.kind != KindURI {
		return "", v.kindError(KindURI)
	}
	return v.s, nil
}

// List returns a copy of the list elements.
func (v Value) List() ([]Value, error) {
	if !v.kind.IsList() {
		return nil, fmt.Errorf("value is %s, not a list: %w", v.kind, kerrors.ErrInvalidType)
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, nil
}

// Len returns the element count for list values and 0 otherwise.
func (v Value) Len() int { return len(v.list) }

// Equal reports deep equality of kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind.IsList() {
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindUInt:
		return v.u == o.u
	case KindReal:
		return v.r == o.r
	case KindString, KindURI:
		return v.s == o.s
	default:
		return true
	}
}

// Format renders the scalar payload as wire text. List values render their
// elements comma-separated for logs; the wire codec emits item children
// instead and never calls Format on a list.
func (v Value) Format() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUInt:
		return strconv.FormatUint(v.u, 10)
	case KindReal:
		return strconv.FormatFloat(v.r, 'g', -1, 64)
	case KindString, KindURI:
		return v.s
	default:
		if v.kind.IsList() {
			parts := make([]string, len(v.list))
			for i, e := range v.list {
				parts[i] = e.Format()
			}
			return strings.Join(parts, ",")
		}
		return "<invalid>"
	}
}

// String implements fmt.Stringer for logging.
func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.Format())
}

// Parse decodes wire text into a scalar value of the given kind. List kinds
// are rejected; the codec assembles lists element by element.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, kerrors.ErrInvalidType)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", text, kerrors.ErrInvalidType)
		}
		return Int(i), nil
	case KindUInt:
		u, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse uint %q: %w", text, kerrors.ErrInvalidType)
		}
		return UInt(u), nil
	case KindReal:
		r, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse real %q: %w", text, kerrors.ErrInvalidType)
		}
		return Real(r), nil
	case KindString:
		return String(text), nil
	case KindURI:
		return ParseURI(text)
	default:
		return Value{}, fmt.Errorf("cannot parse kind %s from text: %w", kind, kerrors.ErrInvalidType)
	}
}

// Compare orders two numeric values of the same kind: -1, 0, or 1.
// Non-numeric or mixed kinds fail ErrInvalidType.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind {
		return 0, fmt.Errorf("compare %s against %s: %w", a.kind, b.kind, kerrors.ErrInvalidType)
	}
	switch a.kind {
	case KindInt:
		return cmpOrdered(a.i, b.i), nil
	case KindUInt:
		return cmpOrdered(a.u, b.u), nil
	case KindReal:
		return cmpOrdered(a.r, b.r), nil
	default:
		return 0, fmt.Errorf("kind %s is not ordered: %w", a.kind, kerrors.ErrInvalidType)
	}
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
