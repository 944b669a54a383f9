// Package worker provides a generic bounded worker pool.
//
// A Pool[T] runs a fixed number of goroutines draining a bounded queue
// of T. The NATS gateway uses one to cap concurrent dispatches from a
// subscription; any producer/consumer with a known work type fits.
//
// # Submission
//
// Submit never blocks. When the queue is full the item is rejected with
// ErrQueueFull and counted as dropped, so overload surfaces at the
// producer instead of stalling it:
//
//	pool := worker.NewPool(8, 256, func(ctx context.Context, req request) error {
//	    return dispatch(ctx, req)
//	})
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//
//	if err := pool.Submit(req); errors.Is(err, worker.ErrQueueFull) {
//	    // shed load
//	}
//
// # Shutdown
//
// Stop closes the queue and waits up to the timeout for workers to
// drain what was already accepted. The context given to Start cancels
// workers immediately, abandoning queued items; use one or the other
// depending on whether draining matters. After Stop returns, even on
// ErrStopTimeout, the pool is terminally stopped: submits are rejected
// and repeated stops are no-ops.
//
// # Observability
//
// Stats returns counter snapshots (submitted, processed, failed,
// dropped, queue depth) and is always available. With
// WithMetricsRegistry the same numbers are exported as prometheus
// metrics under a caller-chosen prefix, plus a processing-duration
// histogram labeled by status:
//
//	pool := worker.NewPool(8, 256, process,
//	    worker.WithMetricsRegistry[request](registry, "nats_dispatch"))
//
// Queue depth and utilization gauges refresh once per second while the
// pool runs.
package worker
