// Package errors provides the error taxonomy for the simkernel runtime.
//
// # Overview
//
// Every contract violation the runtime can report is a sentinel in this
// package: tree structure violations (ErrDuplicateName, ErrComponentNotFound),
// link resolution failures (ErrDanglingLink, ErrCyclicLink), registry misuse
// (ErrUnknownType, ErrDuplicateRegistration), option validation failures
// (ErrInvalidType, ErrOutOfRange, ErrLocked), signal dispatch failures
// (ErrUnknownSignal, ErrArgumentMismatch), and wire-level failures
// (ErrProtocolError, ErrNetworkDisconnected). Layers wrap these with
// component/operation context on the way up; callers branch with errors.Is.
//
// # Error Classification
//
// On top of the sentinels sits a three-class severity model:
//
//   - Transient: network timeouts, connection loss, store unavailability
//     (retry may help)
//   - Invalid: contract violations, malformed frames, bad configuration
//     (do not retry; the same call will fail the same way)
//   - Fatal: resource exhaustion, corruption, unrecoverable states
//     (stop processing)
//
// Classification integrates with Go's standard error handling: errors.Is,
// errors.As and wrapping chains all work through ClassifiedError.
//
// # Quick Start
//
// Return sentinels for known conditions:
//
//	if _, ok := children[name]; ok {
//	    return errors.ErrDuplicateName
//	}
//
// Wrap errors with context at layer boundaries:
//
//	if err := store.Save(ctx, name, snap); err != nil {
//	    return errors.Wrap(err, "treestore", "Save", "kv put")
//	}
//
// Check classification for retry decisions:
//
//	if errors.IsTransient(err) {
//	    return rc.ShouldRetry(err, attempt)
//	}
//
// The wire gateway uses Classify to decide whether a failed request should
// close the connection (fatal) or produce a structured error reply and keep
// serving (invalid, transient).
package errors
