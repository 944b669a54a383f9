package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simkernel/errors"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "simkernel",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestNewMetricsRegistry_CoreMetricsRegistered(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry.CoreMetrics())

	// Vectors publish no series until first use.
	registry.Metrics.RecordServiceStatus("gateway", 2)
	registry.Metrics.RecordError("kernel", "invalid")
	registry.Metrics.RecordConnectionOpened("tcp")
	registry.Metrics.RecordFrameReceived("tcp")
	registry.Metrics.RecordNATSStatus(true)
	registry.Metrics.RecordNATSRTT(3 * time.Millisecond)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	for _, want := range []string{
		"simkernel_service_status",
		"simkernel_errors_total",
		"simkernel_transport_connections_active",
		"simkernel_transport_frames_received_total",
		"simkernel_nats_connected",
		"simkernel_nats_rtt_milliseconds",
		"go_goroutines",
	} {
		assert.True(t, got[want], "missing metric family %s", want)
	}
}

func TestRegister_DuplicateKeyRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("kernel", "ops", newTestCounter("ops_a_total")))

	err := registry.RegisterCounter("kernel", "ops", newTestCounter("ops_b_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")
}

func TestRegister_PrometheusConflictClassifiedInvalid(t *testing.T) {
	registry := NewMetricsRegistry()

	// Distinct registry keys, identical Prometheus identity.
	require.NoError(t, registry.RegisterCounter("svc_a", "ops", newTestCounter("shared_total")))

	err := registry.RegisterCounter("svc_b", "ops", newTestCounter("shared_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()
	counter := newTestCounter("transient_total")

	require.NoError(t, registry.RegisterCounter("kernel", "transient", counter))
	assert.True(t, registry.Unregister("kernel", "transient"))
	assert.False(t, registry.Unregister("kernel", "transient"))

	// Key is free again after unregistration.
	require.NoError(t, registry.RegisterCounter("kernel", "transient", newTestCounter("transient_total")))
}

func TestRegisterVecVariants(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simkernel", Subsystem: "test", Name: "vec_total", Help: "h",
	}, []string{"label"})
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "simkernel", Subsystem: "test", Name: "vec_gauge", Help: "h",
	}, []string{"label"})
	histVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "simkernel", Subsystem: "test", Name: "vec_seconds", Help: "h",
	}, []string{"label"})

	require.NoError(t, registry.RegisterCounterVec("test", "vec_total", counterVec))
	require.NoError(t, registry.RegisterGaugeVec("test", "vec_gauge", gaugeVec))
	require.NoError(t, registry.RegisterHistogramVec("test", "vec_seconds", histVec))

	counterVec.WithLabelValues("a").Inc()
	gaugeVec.WithLabelValues("a").Set(1)
	histVec.WithLabelValues("a").Observe(0.1)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["simkernel_test_vec_total"])
	assert.True(t, names["simkernel_test_vec_gauge"])
	assert.True(t, names["simkernel_test_vec_seconds"])
}

func TestConnectionGaugeBalance(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordConnectionOpened("ws")
	m.RecordConnectionOpened("ws")
	m.RecordConnectionClosed("ws")

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "simkernel_transport_connections_active" {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		return
	}
	t.Fatal("active connections gauge not found")
}
