// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff and optional
// jitter. The kernel client uses it for dial and reconnect policies; the NATS client
// uses it while waiting for JetStream availability at startup.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (startup dials)
//   - Persistent(): 30 attempts, 200ms-10s delay (reconnect loops)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Dial(addr)
//	})
//
// Retry with result:
//
//	bucket, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (jetstream.KeyValue, error) {
//	    return js.KeyValue(ctx, bucketName)
//	})
//
// Marking an error as non-retryable stops the loop immediately:
//
//	err := retry.Do(ctx, retry.Persistent(), func() error {
//	    reply, err := c.Call(ctx, target, signal, args)
//	    if kerrors.IsInvalid(err) {
//	        return retry.NonRetryable(err)
//	    }
//	    return err
//	})
//
// Contract-violation replies (unknown signal, argument mismatch, out of range)
// fail the same way every time, so retrying them only hides bugs.
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers
//   - No metrics collection (instrument at the call site)
//   - No error classification (caller decides what to retry)
//   - Just exponential backoff with jitter
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop retrying
// when the context is cancelled, either during operation execution or during backoff delay.
package retry
