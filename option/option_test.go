package option

import (
	"errors"
	"testing"

	kerrors "github.com/c360/simkernel/errors"
)

func TestOption_DefaultMustMatchKind(t *testing.T) {
	if _, err := New("value", "", KindInt, String("nope")); !errors.Is(err, kerrors.ErrInvalidType) {
		t.Errorf("mismatched default should fail ErrInvalidType, got %v", err)
	}
	if _, err := New("", "", KindInt, Int(0)); err == nil {
		t.Error("empty name should be rejected")
	}
}

func TestOption_SetCommitsValue(t *testing.T) {
	o := MustNew("value", "counter value", KindInt, Int(0))

	if err := o.Set(Int(10)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !o.Value().Equal(Int(10)) {
		t.Errorf("expected 10, got %v", o.Value())
	}
	if !o.WasSet() {
		t.Error("WasSet should be true after a successful set")
	}
	if !o.Default().Equal(Int(0)) {
		t.Error("default must not move with the current value")
	}
}

func TestOption_TypeMismatchKeepsPriorValue(t *testing.T) {
	o := MustNew("value", "", KindInt, Int(3))
	fired := 0
	o.OnChange(func() { fired++ })

	err := o.Set(String("seven"))
	if !errors.Is(err, kerrors.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if !o.Value().Equal(Int(3)) {
		t.Errorf("prior value should be retained, got %v", o.Value())
	}
	if fired != 0 {
		t.Errorf("no trigger should fire on rejection, fired %d", fired)
	}
}

func TestOption_RangeValidation(t *testing.T) {
	o := MustNew("port", "listen port", KindUInt, UInt(62784)).
		Range(UInt(49153), UInt(65535))

	if err := o.Set(UInt(50000)); err != nil {
		t.Fatalf("in-range set failed: %v", err)
	}
	if err := o.Set(UInt(80)); !errors.Is(err, kerrors.ErrOutOfRange) {
		t.Errorf("below minimum should fail ErrOutOfRange, got %v", err)
	}
	if err := o.Set(UInt(70000)); !errors.Is(err, kerrors.ErrOutOfRange) {
		t.Errorf("above maximum should fail ErrOutOfRange, got %v", err)
	}
	if !o.Value().Equal(UInt(50000)) {
		t.Errorf("rejections must not move the value, got %v", o.Value())
	}
}

func TestOption_RestrictToEnumeration(t *testing.T) {
	o := MustNew("format", "output format", KindString, String("gmsh")).
		Restrict(String("gmsh"), String("cgns"), String("neu"))

	if err := o.Set(String("cgns")); err != nil {
		t.Fatalf("allowed value rejected: %v", err)
	}
	if err := o.Set(String("vtk")); !errors.Is(err, kerrors.ErrOutOfRange) {
		t.Errorf("disallowed value should fail ErrOutOfRange, got %v", err)
	}
}

func TestOption_ListValidatedElementwise(t *testing.T) {
	o := MustNew("weights", "", KindRealList, Reals()).
		Range(Real(0), Real(1))

	if err := o.Set(Reals(0.2, 0.8)); err != nil {
		t.Fatalf("valid list rejected: %v", err)
	}
	if err := o.Set(Reals(0.5, 1.5)); !errors.Is(err, kerrors.ErrOutOfRange) {
		t.Errorf("out-of-range element should fail, got %v", err)
	}
	if !o.Value().Equal(Reals(0.2, 0.8)) {
		t.Errorf("prior list retained on failure, got %v", o.Value())
	}
}

func TestOption_Lock(t *testing.T) {
	o := MustNew("mesh", "mesh file", KindURI, URI("file:none")).Lock()

	if err := o.Set(URI("file:square.msh")); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	err := o.Set(URI("file:other.msh"))
	if !errors.Is(err, kerrors.ErrLocked) {
		t.Errorf("second set should fail ErrLocked, got %v", err)
	}
	if !o.Value().Equal(URI("file:square.msh")) {
		t.Errorf("locked value moved: %v", o.Value())
	}
}

func TestOption_LockedRejectionBeforeValidation(t *testing.T) {
	// A locked option reports ErrLocked even for values that would also
	// fail validation, matching the pipeline order.
	o := MustNew("n", "", KindInt, Int(0)).Lock().Range(Int(0), Int(10))
	if err := o.Set(Int(5)); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := o.Set(Int(99)); !errors.Is(err, kerrors.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestOption_TriggersFireInOrderAfterCommit(t *testing.T) {
	o := MustNew("value", "", KindInt, Int(0))

	var order []string
	var observed int64
	o.OnChange(func() {
		v, _ := o.Value().Int()
		observed = v
		order = append(order, "first")
	})
	o.OnChange(func() { order = append(order, "second") })

	if err := o.Set(Int(42)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if observed != 42 {
		t.Errorf("trigger observed %d, want committed 42", observed)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("triggers out of order: %v", order)
	}
}

func TestOption_BindWritesThrough(t *testing.T) {
	var dimension uint64
	o := MustNew("dimension", "", KindUInt, UInt(0)).BindUInt(&dimension)

	if err := o.Set(UInt(3)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if dimension != 3 {
		t.Errorf("bound storage not written, got %d", dimension)
	}

	// Rejection must not touch the bound storage either.
	_ = o.Set(Int(9))
	if dimension != 3 {
		t.Errorf("bound storage moved on rejection, got %d", dimension)
	}
}

func TestOption_BindBeforeTriggers(t *testing.T) {
	var current int64
	var seen int64
	o := MustNew("value", "", KindInt, Int(0)).BindInt(&current)
	o.OnChange(func() { seen = current })

	if err := o.Set(Int(7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if seen != 7 {
		t.Errorf("trigger ran before write-through: saw %d", seen)
	}
}

func TestOption_Reset(t *testing.T) {
	var bound int64
	o := MustNew("value", "", KindInt, Int(1)).BindInt(&bound)
	fired := 0
	o.OnChange(func() { fired++ })

	if err := o.Set(Int(9)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	o.Reset()

	if !o.Value().Equal(Int(1)) {
		t.Errorf("Reset should restore default, got %v", o.Value())
	}
	if o.WasSet() {
		t.Error("Reset should clear WasSet")
	}
	if bound != 1 {
		t.Errorf("Reset should write default through, got %d", bound)
	}
	if fired != 1 {
		t.Errorf("Reset must not fire triggers, fired %d", fired)
	}
}
