// Package natsclient wraps the NATS Go client with circuit breaker
// protection, reconnect handling, and JetStream key-value access.
//
// The package is the single NATS entry point for the server: the NATS
// gateway uses Subscribe/SubscribeRequest and Publish to bridge signal
// dispatch onto subjects, and the tree store uses the KV surface to
// persist component tree snapshots. Both share one Client per process.
//
// # Connection Lifecycle
//
// A client starts disconnected and transitions through Connecting,
// Connected, Reconnecting, and CircuitOpen. Reconnects are handled by
// the NATS library per the configured policy; the circuit breaker sits
// in front of Connect and the KV bucket operations and fails fast after
// repeated errors:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("simkernel"),
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithReconnectWait(2*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// Connect returns ErrCircuitOpen while the breaker is open; the breaker
// half-opens after a backoff that doubles per round up to the maximum.
//
// # Request Handling
//
// SubscribeRequest serves request-reply traffic, optionally in a queue
// group so multiple servers share a subject:
//
//	err := client.SubscribeRequest(ctx, "simkernel.rpc", "servers",
//	    func(msgCtx context.Context, data []byte) []byte {
//	        return handle(msgCtx, data)
//	    })
//
// The matching caller side is Request, which blocks until the reply
// arrives or the context expires.
//
// # Key-Value Store
//
// KVStore wraps a JetStream KV bucket with per-operation timeouts,
// normalized errors, and CAS retry:
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket: "trees",
//	})
//	store := client.NewKVStore(bucket)
//
//	err = store.UpdateJSON(ctx, "meta", func(doc map[string]any) error {
//	    doc["saved"] = time.Now().Unix()
//	    return nil
//	})
//
// Get/Create/Update expose revisions directly for callers that manage
// CAS themselves; conflicts surface as ErrKVKeyExists and
// ErrKVRevisionMismatch.
//
// # Health and Metrics
//
// With a health interval configured, a background probe verifies the
// connection by RTT and flips status on failure. WithMetrics publishes
// connection status, RTT, and reconnect counts through the shared
// metrics registry. Health flips invoke the OnHealthChange callback.
//
// # Test Support
//
// TestClient runs a containerized NATS server and hands back a connected
// Client:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("trees"))
//	store := tc.Client.NewKVStore(mustBucket(t, tc, "trees"))
//
// NewSharedTestClient is the TestMain variant that returns errors
// instead of failing a test.
package natsclient
