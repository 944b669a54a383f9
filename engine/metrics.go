package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/simkernel/metric"
)

// kernelMetrics holds Prometheus metrics for kernel dispatch and tree state.
type kernelMetrics struct {
	dispatches       *prometheus.CounterVec   // By signal and status (ok/error)
	dispatchDuration *prometheus.HistogramVec // By signal

	treeComponents prometheus.Gauge // Current number of attached components
}

// newKernelMetrics creates and registers kernel metrics with the provided registry.
func newKernelMetrics(registry *metric.MetricsRegistry) (*kernelMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &kernelMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simkernel",
			Subsystem: "kernel",
			Name:      "dispatches_total",
			Help:      "Total number of signal dispatches",
		}, []string{"signal", "status"}), // status: ok, error

		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simkernel",
			Subsystem: "kernel",
			Name:      "dispatch_duration_seconds",
			Help:      "Signal dispatch duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"signal"}),

		treeComponents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simkernel",
			Subsystem: "kernel",
			Name:      "tree_components",
			Help:      "Current number of components attached to the tree",
		}),
	}

	if err := registry.RegisterCounterVec("kernel", "dispatches", m.dispatches); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("kernel", "dispatch_duration", m.dispatchDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("kernel", "tree_components", m.treeComponents); err != nil {
		return nil, err
	}

	return m, nil
}

// recordDispatch records one dispatch outcome and its duration.
func (m *kernelMetrics) recordDispatch(signalName, status string, duration float64) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(signalName, status).Inc()
	m.dispatchDuration.WithLabelValues(signalName).Observe(duration)
}

// setTreeSize sets the attached component count.
func (m *kernelMetrics) setTreeSize(count float64) {
	if m != nil {
		m.treeComponents.Set(count)
	}
}
