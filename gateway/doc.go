// Package gateway defines the contract shared by the network listeners
// that expose a kernel to remote clients, and a supervisor that runs them
// as one unit.
//
// Three listener implementations live in subpackages:
//
//   - gateway/tcp serves length-prefixed frame documents over raw TCP,
//     optionally wrapped in TLS.
//   - gateway/ws serves one frame document per WebSocket text message,
//     with optional bearer-token authentication.
//   - gateway/nats serves frame documents wrapped in JSON envelopes over
//     NATS request-reply, dispatching through a bounded worker pool.
//
// # Dispatch model
//
// Every listener drives the same Dispatcher: one request frame in, one
// reply frame out, never a dropped request. Requests arriving on a single
// client connection are dispatched strictly in arrival order; distinct
// connections proceed concurrently and serialize only where the kernel's
// lock makes them. A connection dropped mid-request does not undo that
// request; delivery is at most once with no rollback.
//
// # Supervision
//
// Supervisor.Run starts all configured listeners under one errgroup. A
// listener that fails to start cancels the group context, which stops the
// listeners that did start. On context cancellation every listener drains
// in-flight requests for a bounded stop timeout.
//
//	sup := gateway.NewSupervisor(logger, 10*time.Second, tcpSrv, wsSrv)
//	if err := sup.Run(ctx); err != nil {
//		return err
//	}
//
// # Ports
//
// The TCP listener defaults to port 62784. Configured ports must fall in
// 49153-65535; config validation calls ValidatePort to enforce that.
package gateway
