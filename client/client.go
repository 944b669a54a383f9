package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/pkg/security"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

// ErrClosed is returned by calls made after Close. A connection the server
// dropped fails kerrors.ErrNetworkDisconnected instead, so callers can tell
// their own shutdown from a lost peer.
var ErrClosed = errors.New("client is closed")

const (
	defaultDialTimeout      = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultHandshakeTimeout = 45 * time.Second
)

// Client is one persistent connection to a kernel server. All methods are
// safe for concurrent use; calls from many goroutines interleave on the one
// connection and correlate their replies by frame id.
type Client struct {
	conn   conn
	logger *slog.Logger

	// writeMu serializes frame writes so concurrent calls never interleave
	// partial frames.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uuid.UUID]chan *wire.Frame
	downErr error

	readDone  chan struct{}
	closeOnce sync.Once

	// Dial-time configuration, set by options before the connection opens.
	dialTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	maxFrameSize     uint32
	authToken        string
	tlsEnabled       bool
	tlsConfig        security.ClientTLSConfig
}

// Dial connects to a kernel server. The address scheme picks the transport:
// "tcp://host:port" or a bare "host:port" opens a framed TCP connection,
// "ws://host:port/path" or "wss://..." a WebSocket one. "wss" implies TLS;
// for TCP, TLS is enabled with WithTLS.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	if addr == "" {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("address cannot be empty: %w", kerrors.ErrInvalidConfig),
			"Client", "Dial", "validate address")
	}

	c := &Client{
		logger:           slog.Default(),
		pending:          make(map[uuid.UUID]chan *wire.Frame),
		readDone:         make(chan struct{}),
		dialTimeout:      defaultDialTimeout,
		writeTimeout:     defaultWriteTimeout,
		handshakeTimeout: defaultHandshakeTimeout,
		maxFrameSize:     wire.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, kerrors.WrapInvalid(err, "Client", "Dial", "apply option")
		}
	}

	scheme := "tcp"
	hostport := addr
	if s, rest, ok := strings.Cut(addr, "://"); ok {
		scheme = s
		hostport = rest
	}

	var cn conn
	var err error
	switch scheme {
	case "tcp":
		cn, err = dialTCP(hostport, c)
	case "wss":
		c.tlsEnabled = true
		cn, err = dialWS(addr, c)
	case "ws":
		cn, err = dialWS(addr, c)
	default:
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("unsupported scheme %q in %q: %w", scheme, addr, kerrors.ErrInvalidConfig),
			"Client", "Dial", "parse address")
	}
	if err != nil {
		return nil, err
	}

	c.conn = cn
	go c.readLoop()

	c.logger.Debug("Connected to kernel server",
		"addr", cn.remoteAddr(),
		"scheme", scheme)
	return c, nil
}

// Connected reports whether the connection is still serving calls.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downErr == nil
}

// RemoteAddr returns the server's address as the transport sees it.
func (c *Client) RemoteAddr() string {
	return c.conn.remoteAddr()
}

// Call invokes a signal on the component at target and returns its reply.
// The context bounds the wait, not the server-side execution: a call that
// times out here may still run to completion on the server, and its late
// reply is discarded. Error replies come back as a *RemoteError wrapping the
// matched sentinel.
func (c *Client) Call(ctx context.Context, target, signalName string, args ...signal.Field) (*wire.Frame, error) {
	req := wire.NewRequest(target, signalName, args...)
	ch := make(chan *wire.Frame, 1)

	c.mu.Lock()
	if c.downErr != nil {
		err := c.downErr
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s on %s: %w", signalName, target, err)
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.writeRequest(req); err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("call %s on %s: %w", signalName, target, err)
	}

	select {
	case reply := <-ch:
		return replyOrError(reply)
	case <-c.readDone:
		// The reader may have delivered the reply just before it exited.
		select {
		case reply := <-ch:
			return replyOrError(reply)
		default:
		}
		c.mu.Lock()
		err := c.downErr
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s on %s: %w", signalName, target, err)
	case <-ctx.Done():
		c.forget(req.ID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("call %s on %s: %v: %w",
				signalName, target, ctx.Err(), kerrors.ErrReplyTimeout)
		}
		return nil, fmt.Errorf("call %s on %s: %w", signalName, target, ctx.Err())
	}
}

// Close shuts the connection down and fails any pending calls with ErrClosed.
// It is idempotent and waits for the reader to exit before returning.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.downErr == nil {
			c.downErr = ErrClosed
		}
		c.mu.Unlock()
		_ = c.conn.close()
		<-c.readDone
	})
	return nil
}

func (c *Client) writeRequest(req *wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := c.conn.writeFrame(req)
	if err == nil {
		return nil
	}
	// An encode failure wrote nothing; the connection is still good. Any
	// other write error leaves the stream in an unknown state.
	if errors.Is(err, kerrors.ErrNetworkDisconnected) {
		c.fail(err)
	}
	return err
}

// fail records the first terminal error and closes the transport. It
// reports whether this call was the one that recorded it.
func (c *Client) fail(err error) bool {
	c.mu.Lock()
	first := c.downErr == nil
	if first {
		c.downErr = err
	}
	c.mu.Unlock()
	_ = c.conn.close()
	return first
}

func (c *Client) forget(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop delivers replies to their pending calls until the connection
// stops. On exit it records the failure, clears the pending map, and closes
// readDone; waiters blocked in Call observe downErr through that close.
func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.pending = make(map[uuid.UUID]chan *wire.Frame)
		c.mu.Unlock()
		close(c.readDone)
	}()

	for {
		reply, err := c.conn.readFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("server closed the connection: %w", kerrors.ErrNetworkDisconnected)
			}
			if c.fail(err) {
				c.logger.Debug("Connection lost", "error", err)
			}
			return
		}
		c.deliver(reply)
	}
}

func (c *Client) deliver(reply *wire.Frame) {
	if !reply.IsReply {
		c.logger.Warn("Request frame from server dropped",
			"target", reply.Target,
			"signal", reply.Signal)
		return
	}
	if reply.ID == uuid.Nil {
		// The server failed before decoding a frame. Our encoder does not
		// produce undecodable frames, so this signals a peer defect; the
		// pending call fails when the server drops the connection.
		c.logger.Warn("Uncorrelated error reply", "message", reply.Message)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[reply.ID]
	if ok {
		delete(c.pending, reply.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Reply for forgotten call discarded", "id", reply.ID)
		return
	}
	ch <- reply
}

func replyOrError(reply *wire.Frame) (*wire.Frame, error) {
	if reply.Status == wire.StatusError {
		return nil, decodeError(reply)
	}
	return reply, nil
}
