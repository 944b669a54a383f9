// Package client dials a kernel server and invokes signals on its tree.
//
// One Client owns one persistent connection, TCP or WebSocket depending on
// the address scheme:
//
//	c, err := client.Dial("tcp://127.0.0.1:62784")
//	c, err := client.Dial("ws://127.0.0.1:62785/", client.WithAuthToken(token))
//
// Call sends a request frame and blocks until its reply arrives, correlating
// by frame id so any number of goroutines may call concurrently over the one
// connection. The context bounds only the wait: the server runs a dispatched
// signal to completion regardless, so an expired call may still have had its
// effect (the protocol is at-most-once with no rollback).
//
// Error replies decode back into the sentinel taxonomy: a signal the target
// does not answer fails errors.Is(err, kerrors.ErrUnknownSignal) here exactly
// as it would against a local kernel. Contract violations additionally carry
// the retry.NonRetryable marker so an opt-in retry policy never replays a
// call the server already rejected.
//
// When the connection drops, every pending call and every later one fails
// with kerrors.ErrNetworkDisconnected. The client never reconnects on its
// own; callers that want retry wrap Dial and Call with pkg/retry.
package client
