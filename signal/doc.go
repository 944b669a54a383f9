// Package signal implements per-instance remote-invocable operations.
//
// Each component instance owns an independent Table mapping signal names to
// handlers with typed argument schemas. Because tables are per instance, two
// components of the same type can expose different operations when their
// constructors decide to.
//
// Dispatch is strict: an unregistered name fails ErrUnknownSignal; arguments
// decode against the schema positionally or by key, defaults fill omitted
// optional arguments, and any type or arity mismatch fails
// ErrArgumentMismatch before the handler runs, so a rejected call has no
// observable side effect.
//
// Signals share the option package's Kind/Value representation, so the wire
// codec, the option store and signal schemas agree on parsing and formatting.
//
// A signal marked ReadOnly promises not to mutate the tree; the kernel
// dispatches it under the shared lock. A Hidden signal stays invocable but
// is left out of list_signals output.
//
// This package performs no synchronization of its own; the kernel owns the
// process-wide mutual-exclusion domain.
package signal
