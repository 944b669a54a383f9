package option

import (
	"errors"
	"testing"

	kerrors "github.com/c360/simkernel/errors"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindBool, "bool"},
		{KindInt, "int"},
		{KindUInt, "uint"},
		{KindReal, "real"},
		{KindString, "string"},
		{KindURI, "uri"},
		{KindIntList, "int[]"},
		{KindURIList, "uri[]"},
		{KindInvalid, "invalid"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
		wantErr  bool
	}{
		{"bool", KindBool, false},
		{"int", KindInt, false},
		{"uint", KindUInt, false},
		{"real", KindReal, false},
		{"string", KindString, false},
		{"uri", KindURI, false},
		{"real[]", KindRealList, false},
		{"string[]", KindStringList, false},
		{"int[][]", KindInvalid, true},
		{"float", KindInvalid, true},
		{"", KindInvalid, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := ParseKind(test.input)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", test.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestKind_ListRoundTrip(t *testing.T) {
	scalars := []Kind{KindBool, KindInt, KindUInt, KindReal, KindString, KindURI}
	for _, k := range scalars {
		list := k.ListOf()
		if !list.IsList() {
			t.Errorf("%v.ListOf() should be a list kind", k)
		}
		if list.Elem() != k {
			t.Errorf("%v round trip gave %v", k, list.Elem())
		}
	}
	if KindIntList.ListOf() != KindInvalid {
		t.Error("list of list should be invalid")
	}
}

func TestValue_Accessors(t *testing.T) {
	v := Int(42)
	if got, err := v.Int(); err != nil || got != 42 {
		t.Errorf("Int() = %d, %v", got, err)
	}
	if _, err := v.Bool(); !errors.Is(err, kerrors.ErrInvalidType) {
		t.Errorf("wrong-kind access should fail ErrInvalidType, got %v", err)
	}

	u := UInt(7)
	if got, err := u.UInt(); err != nil || got != 7 {
		t.Errorf("UInt() = %d, %v", got, err)
	}

	r := Real(1.5)
	if got, err := r.Real(); err != nil || got != 1.5 {
		t.Errorf("Real() = %v, %v", got, err)
	}

	s := String("mesh")
	if got, err := s.Str(); err != nil || got != "mesh" {
		t.Errorf("Str() = %q, %v", got, err)
	}

	uri := URI("file:./out.msh")
	if got, err := uri.URIString(); err != nil || got != "file:./out.msh" {
		t.Errorf("URIString() = %q, %v", got, err)
	}
}

func TestValue_ListIsolation(t *testing.T) {
	v := Ints(1, 2, 3)
	elems, err := v.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	elems[0] = Int(99)

	again, _ := v.List()
	if got, _ := again[0].Int(); got != 1 {
		t.Errorf("mutating a returned list changed the value: got %d", got)
	}
}

func TestList_ElementKindEnforced(t *testing.T) {
	_, err := List(KindInt, Int(1), String("two"))
	if !errors.Is(err, kerrors.ErrInvalidType) {
		t.Errorf("mixed list should fail ErrInvalidType, got %v", err)
	}
	if _, err := List(KindIntList, Int(1)); err == nil {
		t.Error("list element kind must be scalar")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Value
		expected bool
	}{
		{"equal ints", Int(5), Int(5), true},
		{"unequal ints", Int(5), Int(6), false},
		{"kind mismatch", Int(5), UInt(5), false},
		{"equal strings", String("a"), String("a"), true},
		{"equal bools", Bool(true), Bool(true), true},
		{"equal reals", Real(2.5), Real(2.5), true},
		{"equal lists", Ints(1, 2), Ints(1, 2), true},
		{"unequal list length", Ints(1, 2), Ints(1), false},
		{"unequal list element", Ints(1, 2), Ints(1, 3), false},
		{"uri vs string", URI("cpath://Root"), String("cpath://Root"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.a.Equal(test.b); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		text string
		want Value
	}{
		{"bool true", KindBool, "true", Bool(true)},
		{"bool false", KindBool, "false", Bool(false)},
		{"int", KindInt, "-12", Int(-12)},
		{"uint", KindUInt, "12", UInt(12)},
		{"real", KindReal, "3.25", Real(3.25)},
		{"real scientific", KindReal, "1e-3", Real(0.001)},
		{"string", KindString, "hello world", String("hello world")},
		{"uri", KindURI, "cpath://Root/Mesh", URI("cpath://Root/Mesh")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Parse(test.kind, test.text)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !got.Equal(test.want) {
				t.Errorf("expected %v, got %v", test.want, got)
			}
			back, err := Parse(test.kind, got.Format())
			if err != nil || !back.Equal(test.want) {
				t.Errorf("format/parse round trip broke: %v, %v", back, err)
			}
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		text string
	}{
		{"bool garbage", KindBool, "maybe"},
		{"int garbage", KindInt, "12.5"},
		{"uint negative", KindUInt, "-1"},
		{"real garbage", KindReal, "fast"},
		{"uri whitespace", KindURI, "cpath://Root/a b"},
		{"uri empty", KindURI, ""},
		{"list kind", KindIntList, "1,2"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.kind, test.text)
			if !errors.Is(err, kerrors.ErrInvalidType) {
				t.Errorf("expected ErrInvalidType, got %v", err)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Value
		expected int
		wantErr  bool
	}{
		{"int less", Int(1), Int(2), -1, false},
		{"int equal", Int(2), Int(2), 0, false},
		{"int greater", Int(3), Int(2), 1, false},
		{"uint", UInt(5), UInt(4), 1, false},
		{"real", Real(0.5), Real(1.5), -1, false},
		{"mixed kinds", Int(1), Real(1), 0, true},
		{"strings not ordered", String("a"), String("b"), 0, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Compare(test.a, test.b)
			if test.wantErr {
				if !errors.Is(err, kerrors.ErrInvalidType) {
					t.Fatalf("expected ErrInvalidType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.expected {
				t.Errorf("expected %d, got %d", test.expected, got)
			}
		})
	}
}
