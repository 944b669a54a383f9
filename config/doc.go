// Package config loads and validates the daemon configuration.
//
// One JSON file describes the whole deployment: the kernel identity, the
// TCP and WebSocket listeners, the optional NATS bridge and tree store,
// the metrics endpoint, TLS, and logging. Every field has a usable
// default, so the file only needs to carry what differs from Default().
//
// # Loading
//
//	cfg, err := config.Load("simkernel.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load layers three sources in order: Default(), the file, and the
// SIMKERNEL_* environment overrides. Validation runs last and reports the
// first failure with its JSON path ("tcp.port", "tls.server.cert_file").
//
// # Environment overrides
//
// Credentials and deployment addresses can stay out of the file:
//
//	export SIMKERNEL_NATS_URL="nats://broker:4222"
//	export SIMKERNEL_NATS_TOKEN="s3cret"
//	export SIMKERNEL_AUTH_TOKEN="ws-bearer-token"
//	export SIMKERNEL_LOG_LEVEL="debug"
//
// # Concurrent access
//
// SafeConfig wraps a Config behind an RWMutex. Get returns a deep copy,
// Update validates before swapping, so readers never observe a partially
// written document.
//
// # File handling
//
// Reads and writes go through safety checks: a 10MB size cap, a JSON
// nesting depth limit, path traversal rejection, and a regular-file
// check. Writes use owner-only permissions.
package config
