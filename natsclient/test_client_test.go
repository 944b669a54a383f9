package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestClientBasicConnection(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithFastStartup())
	require.NotNil(t, tc.Client)
	assert.True(t, tc.IsReady())
	assert.NotEmpty(t, tc.URL)
	assert.NotNil(t, tc.NativeConn())
}

func TestTestClientPreCreatesBuckets(t *testing.T) {
	requireDocker(t)

	tc := NewTestClient(t, WithKVBuckets("trees", "snapshots"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range []string{"trees", "snapshots"} {
		bucket, err := tc.GetKVBucket(ctx, name)
		require.NoError(t, err, "bucket %s", name)
		require.NotNil(t, bucket)
	}

	names, err := tc.Client.ListKeyValueBuckets(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "trees")
	assert.Contains(t, names, "snapshots")
}

func TestTestClientTerminateIsIdempotent(t *testing.T) {
	requireDocker(t)

	tc, err := NewSharedTestClient(WithFastStartup())
	require.NoError(t, err)
	require.True(t, tc.IsReady())

	require.NoError(t, tc.Terminate())
	require.NoError(t, tc.Terminate())
}
