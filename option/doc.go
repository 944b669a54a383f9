// Package option implements the typed, validated, triggerable attribute
// system attached to every component.
//
// # Overview
//
// An Option is a configurable attribute with a declared Kind (bool, int,
// uint, real, string, uri, or an ordered list of one of these), a default,
// and an optional validation constraint: a numeric range, an enumerated
// allowed set, or both. Configuration runs a strict pipeline:
//
//  1. lock check (single-assignment options reject a second set)
//  2. kind check (ErrInvalidType)
//  3. constraint validation (ErrOutOfRange)
//  4. commit of the new value
//  5. write-through to bound external storage, if any
//  6. triggers, fired in registration order
//
// A failed step leaves the prior value untouched and fires nothing, so
// triggers only ever observe fully committed state.
//
// Bound storage lets a component link an option to one of its own fields:
//
//	opts.MustAdd(option.MustNew("dimension", "mesh dimension", option.KindUInt, option.UInt(0))).
//	    BindUInt(&m.dimension)
//
// After every successful configure the field holds the committed value, so
// hot paths read a plain field instead of consulting the store.
//
// A Property is the read-only counterpart: the owning component publishes
// computed state through Update, external readers get value snapshots and
// have no mutation entry point.
//
// The same Kind/Value representation backs signal argument schemas and the
// wire codec, so one set of parse/format rules covers configuration files,
// remote configure calls, and signal dispatch.
package option
