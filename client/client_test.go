package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/gateway/tcp"
	"github.com/c360/simkernel/gateway/ws"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/pkg/retry"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDispatcher echoes the request target. The signal "missing" fails with
// the unknown-signal sentinel, "slow" sleeps first, and a non-nil gate
// blocks every dispatch until the gate closes.
type stubDispatcher struct {
	mu      sync.Mutex
	targets []string
	delay   time.Duration
	gate    chan struct{}
}

func (d *stubDispatcher) Dispatch(_ context.Context, req *wire.Frame) *wire.Frame {
	d.mu.Lock()
	d.targets = append(d.targets, req.Target)
	d.mu.Unlock()

	if d.gate != nil {
		<-d.gate
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if req.Signal == "missing" {
		return wire.ErrorReply(req, fmt.Errorf("signal %q: %w", req.Signal, kerrors.ErrUnknownSignal))
	}
	return wire.OkReply(req, signal.R("echo", option.String(req.Target)))
}

func (d *stubDispatcher) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.targets...)
}

func startTCPServer(t *testing.T, d *stubDispatcher) *tcp.Server {
	t.Helper()
	s, err := tcp.NewServer("tcp", d, tcp.Config{Addr: "127.0.0.1:0"}, testLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(2 * time.Second) })
	return s
}

func startWSServer(t *testing.T, d *stubDispatcher, token string) *ws.Server {
	t.Helper()
	s, err := ws.NewServer("ws", d, ws.Config{Addr: "127.0.0.1:0", AuthToken: token}, testLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(2 * time.Second) })
	return s
}

func dialTCPClient(t *testing.T, s *tcp.Server) *Client {
	t.Helper()
	c, err := Dial("tcp://"+s.Addr().String(), WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialValidation(t *testing.T) {
	_, err := Dial("")
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))

	_, err = Dial("udp://127.0.0.1:9")
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))
	assert.Contains(t, err.Error(), "udp")

	_, err = Dial("tcp://127.0.0.1:1", WithLogger(nil))
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))

	_, err = Dial("tcp://127.0.0.1:1", WithDialTimeout(-time.Second))
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial("tcp://"+addr, WithLogger(testLogger()), WithDialTimeout(time.Second))
	require.Error(t, err)
	assert.True(t, kerrors.IsTransient(err))
}

func TestCallTCPRoundTrip(t *testing.T) {
	d := &stubDispatcher{}
	s := startTCPServer(t, d)
	c := dialTCPClient(t, s)

	reply, err := c.Call(context.Background(), "//root/a", "ping")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, wire.StatusOK, reply.Status)

	echo, ok := reply.Arg("echo")
	require.True(t, ok)
	got, err := echo.Str()
	require.NoError(t, err)
	assert.Equal(t, "//root/a", got)
	assert.True(t, c.Connected())
}

func TestCallWSRoundTrip(t *testing.T) {
	d := &stubDispatcher{}
	s := startWSServer(t, d, "s3cret")

	url := fmt.Sprintf("ws://%s/", s.Addr().String())
	c, err := Dial(url, WithLogger(testLogger()), WithAuthToken("s3cret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	reply, err := c.Call(context.Background(), "//root/b", "ping")
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, reply.Status)
	assert.Equal(t, []string{"//root/b"}, d.seen())
}

func TestDialWSBadToken(t *testing.T) {
	d := &stubDispatcher{}
	s := startWSServer(t, d, "s3cret")

	url := fmt.Sprintf("ws://%s/", s.Addr().String())
	_, err := Dial(url, WithLogger(testLogger()), WithAuthToken("wrong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "credentials")
}

func TestCallRemoteErrorTaxonomy(t *testing.T) {
	d := &stubDispatcher{}
	s := startTCPServer(t, d)
	c := dialTCPClient(t, s)

	reply, err := c.Call(context.Background(), "//root", "missing")
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.ErrorIs(t, err, kerrors.ErrUnknownSignal)
	assert.True(t, retry.IsNonRetryable(err))

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "//root", rerr.Target)
	assert.Equal(t, "missing", rerr.Signal)

	// The error reply does not cost the connection.
	_, err = c.Call(context.Background(), "//root", "ping")
	require.NoError(t, err)
}

func TestCallConcurrent(t *testing.T) {
	d := &stubDispatcher{}
	s := startTCPServer(t, d)
	c := dialTCPClient(t, s)

	const calls = 8
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func(i int) {
			target := fmt.Sprintf("//root/c%d", i)
			reply, err := c.Call(context.Background(), target, "ping")
			if err != nil {
				errs <- err
				return
			}
			echo, ok := reply.Arg("echo")
			if !ok {
				errs <- fmt.Errorf("reply for %s missing echo", target)
				return
			}
			got, err := echo.Str()
			if err != nil {
				errs <- err
				return
			}
			if got != target {
				errs <- fmt.Errorf("reply for %s correlated to %s", target, got)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < calls; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for concurrent calls")
		}
	}
	assert.Len(t, d.seen(), calls)
}

func TestCallContextTimeout(t *testing.T) {
	d := &stubDispatcher{delay: 300 * time.Millisecond}
	s := startTCPServer(t, d)
	c := dialTCPClient(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "//root", "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrReplyTimeout)

	c.mu.Lock()
	remaining := len(c.pending)
	c.mu.Unlock()
	assert.Zero(t, remaining)

	// The late reply is discarded; the connection keeps working.
	reply, err := c.Call(context.Background(), "//root", "ping")
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, reply.Status)
}

func TestServerDropFailsPending(t *testing.T) {
	d := &stubDispatcher{gate: make(chan struct{})}
	s := startTCPServer(t, d)
	c := dialTCPClient(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "//root", "ping")
		done <- err
	}()
	require.Eventually(t, func() bool { return len(d.seen()) == 1 },
		2*time.Second, 10*time.Millisecond)

	// The gated handler cannot drain, so Stop force-closes the connection.
	require.Error(t, s.Stop(50*time.Millisecond))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, kerrors.ErrNetworkDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not fail after the drop")
	}

	_, err := c.Call(context.Background(), "//root", "ping")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrNetworkDisconnected)
	assert.False(t, c.Connected())

	close(d.gate)
}

func TestCloseIdempotent(t *testing.T) {
	d := &stubDispatcher{}
	s := startTCPServer(t, d)

	c, err := Dial("tcp://"+s.Addr().String(), WithLogger(testLogger()))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.Connected())

	_, err = c.Call(context.Background(), "//root", "ping")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}
