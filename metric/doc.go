// Package metric provides centralized Prometheus metrics for simkernel
// processes.
//
// # Overview
//
// A MetricsRegistry owns one private Prometheus registry per process. Core
// platform metrics (service status, error counts, transport counters, NATS
// health) are registered at construction; components add their own
// collectors under a "service.metric" key so collisions fail loudly at
// registration instead of silently merging series.
//
// # Usage
//
// Construct the registry once at startup and hand it to every component
// that records metrics:
//
//	registry := metric.NewMetricsRegistry()
//	kern, err := engine.New("root", typeRegistry, logger, registry)
//
// Components register their collectors during construction:
//
//	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
//		Namespace: "simkernel",
//		Subsystem: "kernel",
//		Name:      "dispatches_total",
//		Help:      "Total dispatched signal invocations",
//	}, []string{"signal", "status"})
//	if err := registry.RegisterCounterVec("kernel", "dispatches", dispatches); err != nil {
//		return err
//	}
//
// # Exposure
//
// Server exposes the registry over HTTP with optional TLS:
//
//	srv := metric.NewServer(9090, "/metrics", registry, securityCfg)
//	go srv.Start()
//	defer srv.Stop()
//
// All metrics use the "simkernel" namespace. Metrics are optional
// everywhere: components accept a nil registry and skip recording, so unit
// tests never need Prometheus plumbing.
package metric
