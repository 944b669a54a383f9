// Package engine hosts the kernel: the component tree root, the registry
// handle, and the process-wide lock that serializes every structural
// mutation.
//
// # Concurrency Model
//
// One sync.RWMutex guards the tree. Attach, detach, configure, and every
// mutating signal take the exclusive side; path resolution, snapshots, and
// read-only signals share the read side. A handler runs to completion once
// invoked; there is no cancellation and no execution timeout at this layer,
// so network liveness is the transport's problem, never the tree's.
//
// Dispatch classifies the signal first under the read lock. Read-only
// signals execute right there; mutating ones re-resolve under the write
// lock because the tree may have changed in the gap between the locks.
//
// # Core Signals
//
// Every attached component answers the tree-management signals:
//
//	create_component(name, type, basic?, target?)
//	delete_component(name)
//	rename_component(name)
//	configure(<option>=<value>, ...)
//	list_tree, list_options, list_signals, list_properties
//
// The list_* signals are read-only and return their listings as JSON
// documents in string arguments, since the wire carries scalars and scalar
// lists only. configure is an open signal: its arguments are option names,
// applied in the order the caller wrote them, first failure aborting with
// earlier commits retained.
//
// # Lifecycle
//
//	reg := registry.New()
//	k, err := engine.New("root", reg, logger, metricsRegistry)
//	err = k.Initialize()        // installs the kernel builtin library
//	err = k.Start(ctx)          // opens remote dispatch
//	reply := k.Dispatch(ctx, frame)
//	err = k.Stop(5 * time.Second)
//
// The Go-level API (Create, Delete, Rename, Configure, Resolve, Snapshot)
// works before Start so a daemon can assemble its initial tree unobserved;
// only Dispatch is gated on the started flag.
//
// # Builtins
//
// Initialize registers the kernel library: Group (plain container), Link
// (path alias), and Journal (ring of recent dispatches, queried with the
// read-only recent signal).
package engine
