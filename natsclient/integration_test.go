package natsclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simkernel/metric"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

func TestIntegrationConnect(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())

	assert.True(t, tc.IsReady())
	assert.Equal(t, StatusConnected, tc.Client.Status())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	report := tc.Client.StatusReport()
	assert.Equal(t, StatusConnected, report.Status)
	assert.Greater(t, report.RTT, time.Duration(0))
}

func TestIntegrationPublishSubscribe(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	received := make(chan []byte, 1)
	err := tc.Client.Subscribe(ctx, "kernel.events", func(_ context.Context, data []byte) {
		received <- data
	})
	require.NoError(t, err)

	require.NoError(t, tc.Client.Publish(ctx, "kernel.events", []byte("created")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("created"), data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegrationRequestReply(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	var served atomic.Int32
	err := tc.Client.SubscribeRequest(ctx, "kernel.rpc", "servers",
		func(_ context.Context, data []byte) []byte {
			served.Add(1)
			return append([]byte("echo:"), data...)
		})
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	reply, err := tc.Client.Request(reqCtx, "kernel.rpc", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte("echo:ping"), reply)
	assert.Equal(t, int32(1), served.Load())
}

func TestIntegrationRequestNilReplyTimesOut(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	err := tc.Client.SubscribeRequest(ctx, "kernel.silent", "",
		func(_ context.Context, _ []byte) []byte {
			return nil
		})
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = tc.Client.Request(reqCtx, "kernel.silent", []byte("ping"))
	assert.Error(t, err)
}

func TestIntegrationKVBucketLifecycle(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithIntegrationDefaults())
	ctx := context.Background()

	bucket, err := tc.CreateKVBucket(ctx, "trees")
	require.NoError(t, err)
	require.NotNil(t, bucket)

	// Creating again returns the existing bucket.
	again, err := tc.CreateKVBucket(ctx, "trees")
	require.NoError(t, err)
	require.NotNil(t, again)

	names, err := tc.Client.ListKeyValueBuckets(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "trees")

	fetched, err := tc.GetKVBucket(ctx, "trees")
	require.NoError(t, err)
	assert.NotNil(t, fetched)

	require.NoError(t, tc.Client.DeleteKeyValueBucket(ctx, "trees"))

	_, err = tc.GetKVBucket(ctx, "trees")
	assert.Error(t, err)
}

func TestIntegrationHealthMonitorRecordsRTT(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	registry := metric.NewMetricsRegistry()
	client, err := NewClient(tc.URL,
		WithMaxReconnects(0),
		WithHealthInterval(50*time.Millisecond),
		WithMetrics(registry),
	)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	require.NoError(t, client.WaitForConnection(ctx))

	// Give the monitor a few probe rounds.
	assert.Eventually(t, func() bool {
		families, err := registry.PrometheusRegistry().Gather()
		if err != nil {
			return false
		}
		for _, fam := range families {
			if fam.GetName() == "simkernel_nats_rtt_milliseconds" {
				return len(fam.GetMetric()) == 1
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond)
}

func TestIntegrationCloseDrainsAndRejects(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	client, err := NewClient(tc.URL,
		WithMaxReconnects(0),
		WithHealthInterval(0),
		WithDrainTimeout(2*time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))

	require.NoError(t, client.Close(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())

	assert.ErrorIs(t, client.Publish(ctx, "subj", []byte("x")), ErrNotConnected)

	// Second close is a no-op.
	assert.NoError(t, client.Close(ctx))
}

func TestIntegrationConnectFailureOpensCircuit(t *testing.T) {
	requireDocker(t)

	ctx := context.Background()

	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		err = client.Connect(ctx)
		assert.Error(t, err)
		assert.NotEqual(t, StatusCircuitOpen, client.Status())
	}

	err = client.Connect(ctx)
	assert.Error(t, err)
	assert.Equal(t, StatusCircuitOpen, client.Status())

	// While open, connects fail fast.
	assert.ErrorIs(t, client.Connect(ctx), ErrCircuitOpen)
}
