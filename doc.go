// Package simkernel provides an embeddable component kernel: a tree of
// named, typed component instances that can be inspected, rewired, and
// reconfigured at runtime over a framed XML wire protocol.
//
// A program registers its component types, builds a kernel around a root,
// and serves the tree over TCP, WebSocket, or NATS. Operators and front
// ends then create, link, configure, and invoke components by path without
// restarting the process, and snapshot whole trees into NATS JetStream KV.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        Gateway Listeners            │  TCP, WebSocket, NATS
//	│    (framed XML request/reply)       │  request/reply
//	└─────────────────────────────────────┘
//	           ↓ dispatch
//	┌─────────────────────────────────────┐
//	│             Kernel                  │  Path resolution, locking,
//	│   (serialize, resolve, invoke)      │  dispatch journal
//	└─────────────────────────────────────┘
//	           ↓ invokes
//	┌─────────────────────────────────────┐
//	│         Component Tree              │  Options, properties, and
//	│  (typed instances, groups, links)   │  signals per instance
//	└─────────────────────────────────────┘
//
// Every request names a target path and a signal. The kernel resolves the
// path, takes the tree lock appropriate to the signal (shared for
// read-only, exclusive for mutating), and runs the handler. The reply is
// always a frame: results on success, a classified error otherwise.
//
// # The Tree
//
// Components live in a single rooted tree. Paths use "/" separators:
// absolute paths start with "//" followed by the root name
// ("//lab/sensors/imu"), "." is the current component, ".." its parent. A
// relative path in a dispatch resolves from the root, so clients address
// the root as "." without knowing its name. Link components alias another
// path and resolve transparently, with a shared hop budget against cycles.
//
// Each instance carries three typed surfaces:
//   - Options: validated read-write settings with defaults, restrictions,
//     ranges, and change triggers
//   - Properties: read-only attributes the component publishes
//   - Signals: invocable operations with declared argument schemas
//
// # Packages
//
// Kernel core:
//   - component: tree nodes, names, path resolution, links, snapshots
//   - option: typed values, option stores, property sets
//   - signal: signal tables, argument schemas, invocation
//   - registry: (library, type) -> constructor registry
//   - engine: the kernel itself; dispatch, builtins, tree persistence
//   - wire: XML frame codec and framing
//
// Transport:
//   - gateway: listener supervision, port rules
//   - gateway/tcp, gateway/ws, gateway/nats: protocol listeners
//   - client: Go client; dialing, typed wrappers, error mapping
//
// Persistence and messaging:
//   - treestore: tree snapshots in NATS JetStream KV
//   - natsclient: NATS connection management
//
// Infrastructure:
//   - config: daemon configuration loading and validation
//   - metric: Prometheus metrics
//   - errors: structured error handling and classification
//   - pkg/retry: retry policies
//   - pkg/security, pkg/tlsutil: TLS configuration and loading
//   - pkg/worker: worker pools
//   - pkg/timestamp: time utilities
//
// # Usage
//
// Embedding a kernel:
//
//	reg := registry.New()
//	registry.NewLibrary("motion").
//	    Add("Servo", "PWM servo channel", NewServo).
//	    Install(reg)
//
//	kernel, _ := engine.New("lab", reg, logger, metrics)
//	kernel.Initialize()
//	kernel.Start(ctx)
//	defer kernel.Stop(5 * time.Second)
//
//	srv, _ := tcp.NewServer("tcp", kernel, tcp.Config{}, logger, metrics)
//	gateway.NewSupervisor(logger, 5*time.Second, srv).Run(ctx)
//
// Remote control from Go:
//
//	c, _ := client.Dial("tcp://localhost:62784")
//	defer c.Close()
//
//	c.CreateComponent(ctx, ".", "kernel.Group", "sensors")
//	c.CreateComponent(ctx, "//lab/sensors", "motion.Servo", "pan")
//	c.Configure(ctx, "//lab/sensors/pan", signal.R("angle", option.Real(90)))
//	reply, _ := c.Call(ctx, "//lab/sensors/pan", "center")
//
// Tree snapshots:
//
//	c.SaveTree(ctx, ".", "bench-setup")
//	c.LoadTree(ctx, ".", "bench-setup")
//
// # Extending
//
// Downstream modules add component types by installing their own
// libraries. A constructor returns any implementation of
// component.Component; most types embed component.Base and declare their
// options and signals during construction. Signals marked open accept
// undeclared arguments, which arrive as strings.
//
// Library and type names share the component name charset and may not
// contain dots; the qualified name is "library.Type". The kernel library
// (Group, Link, Journal) is always installed by Initialize.
//
// # Binaries
//
// Run the daemon and control it:
//
//	# Serve a kernel from a config file
//	./bin/simkerneld --config configs/lab.json
//
//	# Inspect and reconfigure it
//	./bin/skctl tree
//	./bin/skctl set //lab/sensors/pan angle=45
//
//	# Export JSON Schemas for registered types
//	./bin/skschema -out ./schemas
//
// # Version
//
// Current: v0.1.0
package simkernel
