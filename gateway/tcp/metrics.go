package tcp

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/simkernel/metric"
)

// listenerMetrics holds the listener-specific collectors. Connection and
// frame totals go through the shared transport metrics in metric.Metrics.
type listenerMetrics struct {
	errorsTotal      *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

func newMetrics(registry *metric.MetricsRegistry, componentName string) *listenerMetrics {
	if registry == nil {
		return nil
	}

	m := &listenerMetrics{
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simkernel",
			Subsystem: "tcp_gateway",
			Name:      "errors_total",
			Help:      "Connection and dispatch errors by reason",
		}, []string{"component", "reason"}),

		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simkernel",
			Subsystem: "tcp_gateway",
			Name:      "dispatch_duration_seconds",
			Help:      "Kernel dispatch duration per request frame",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"component", "status"}),
	}

	registry.RegisterCounterVec(componentName, "errors_total", m.errorsTotal)
	registry.RegisterHistogramVec(componentName, "dispatch_duration", m.dispatchDuration)
	return m
}
