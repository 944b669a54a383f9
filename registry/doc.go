// Package registry maps (library, type) pairs to component constructors.
//
// Every concrete component type self-registers at startup under a library
// name and a bare type name. Lookup accepts either the qualified
// "library.Type" form or the bare type name; a bare name shared by several
// libraries is rejected as ambiguous rather than resolved arbitrarily.
//
// Registration is once per pair for the process lifetime. There is no
// unregister: remote peers may cache type schemas, and a type vanishing or
// changing meaning underneath them is worse than a stale entry.
//
// Create builds instances detached. Attachment is a separate, explicit step
// by the caller, so no observer ever sees a half-initialized component
// inside a tree.
package registry
