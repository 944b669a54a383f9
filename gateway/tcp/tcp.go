// Package tcp serves the frame protocol over raw TCP: one
// length-prefixed document per request, replies written in request
// order on the same connection.
package tcp

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/gateway"
	"github.com/c360/simkernel/metric"
	"github.com/c360/simkernel/pkg/security"
	"github.com/c360/simkernel/pkg/tlsutil"
	"github.com/c360/simkernel/wire"
)

const (
	// idleReadDeadline is how long one read waits before rechecking the
	// shutdown flag. Stop latency is bounded by this.
	idleReadDeadline = 1 * time.Second

	// frameReadTimeout bounds reading one whole frame once its first
	// byte has arrived.
	frameReadTimeout = 10 * time.Second

	defaultWriteTimeout = 10 * time.Second
)

// Config holds the TCP listener settings.
type Config struct {
	// Addr is the listen address. Empty means all interfaces on
	// gateway.DefaultPort.
	Addr string `json:"addr,omitempty"`

	// MaxFrameSize caps one framed document in bytes. 0 means
	// wire.DefaultMaxFrameSize.
	MaxFrameSize uint32 `json:"max_frame_size,omitempty"`

	// WriteTimeout bounds writing one reply. 0 means 10s.
	WriteTimeout time.Duration `json:"write_timeout,omitempty"`

	// TLS wraps the listener when Enabled.
	TLS security.ServerTLSConfig `json:"tls,omitempty"`
}

// Server accepts TCP connections and dispatches their frames. One reader
// goroutine per connection decodes, dispatches, and replies in strict
// arrival order; distinct connections are served concurrently.
type Server struct {
	name       string
	config     Config
	dispatcher gateway.Dispatcher
	logger     *slog.Logger
	core       *metric.Metrics
	metrics    *listenerMetrics

	listener net.Listener
	conns    map[int64]net.Conn
	connsMu  sync.Mutex
	connSeq  atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	lifecycleMu  sync.Mutex
	wg           sync.WaitGroup
}

var _ gateway.Server = (*Server)(nil)

// NewServer builds a TCP listener around a dispatcher. A nil registry
// disables metrics; a nil logger falls back to slog.Default.
func NewServer(
	name string,
	dispatcher gateway.Dispatcher,
	config Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*Server, error) {
	if name == "" {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("empty listener name"), "tcp_gateway", "NewServer", "validate name")
	}
	if dispatcher == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nil dispatcher"), "tcp_gateway", "NewServer", "validate dispatcher")
	}
	if config.Addr == "" {
		config.Addr = fmt.Sprintf(":%d", gateway.DefaultPort)
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = wire.DefaultMaxFrameSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		name:       name,
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
		conns:      make(map[int64]net.Conn),
		shutdown:   make(chan struct{}),
	}
	if registry != nil {
		s.core = registry.CoreMetrics()
		s.metrics = newMetrics(registry, name)
	}
	return s, nil
}

// Name returns the listener name used in logs and metric labels.
func (s *Server) Name() string { return s.name }

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return kerrors.WrapFatal(kerrors.ErrAlreadyStarted, "tcp_gateway", "Start", "check started state")
	}
	select {
	case <-s.shutdown:
		return kerrors.WrapFatal(kerrors.ErrShuttingDown, "tcp_gateway", "Start", "check stopped state")
	default:
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return kerrors.WrapFatal(err, "tcp_gateway", "Start", "listen "+s.config.Addr)
	}

	if s.config.TLS.Enabled {
		tlsCfg, err := tlsutil.LoadServerTLSConfigWithMTLS(s.config.TLS, s.config.TLS.MTLS)
		if err != nil {
			ln.Close()
			return kerrors.WrapFatal(err, "tcp_gateway", "Start", "load TLS config")
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	s.listener = ln
	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.started.Store(true)
	s.logger.Info("tcp gateway listening",
		"listener", s.name, "addr", ln.Addr().String(), "tls", s.config.TLS.Enabled)
	return nil
}

// Stop closes the listener and waits for per-connection handlers to
// finish their in-flight request. Connections still open after the
// timeout are force-closed; the server stays terminally stopped either
// way.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	if s.listener != nil {
		s.listener.Close()
	}
	s.started.Store(false)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.closeConns()
		return kerrors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"tcp_gateway", "Stop", "wait for connections")
	}
}

func (s *Server) closeConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for id, conn := range s.conns {
		conn.Close()
		delete(s.conns, id)
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed", "listener", s.name, "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		id := s.connSeq.Add(1)
		s.connsMu.Lock()
		s.conns[id] = conn
		s.connsMu.Unlock()

		if s.core != nil {
			s.core.RecordConnectionOpened(s.name)
		}
		s.wg.Add(1)
		go s.handleConn(ctx, id, conn)
	}
}

// handleConn is the per-connection loop: read one frame, dispatch it,
// write the reply, repeat. Returning drops the connection.
func (s *Server) handleConn(ctx context.Context, id int64, conn net.Conn) {
	defer s.wg.Done()
	remote := conn.RemoteAddr().String()
	s.logger.Debug("client connected", "listener", s.name, "remote", remote)

	defer func() {
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, id)
		s.connsMu.Unlock()
		if s.core != nil {
			s.core.RecordConnectionClosed(s.name)
		}
		s.logger.Debug("client disconnected", "listener", s.name, "remote", remote)
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		// Idle wait for the first byte of the next frame. Peek consumes
		// nothing, so a timeout here leaves the stream aligned.
		conn.SetReadDeadline(time.Now().Add(idleReadDeadline))
		if _, err := reader.Peek(1); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("connection read failed",
					"listener", s.name, "remote", remote, "error", err)
			}
			return
		}

		// A frame is in flight: one deadline for the whole document.
		conn.SetReadDeadline(time.Now().Add(frameReadTimeout))
		req, err := wire.ReadFrame(reader, s.config.MaxFrameSize)
		if err != nil {
			// The stream cannot be resynced after a bad frame. A decode
			// failure still gets a best-effort uncorrelated error reply
			// before the drop.
			if errors.Is(err, kerrors.ErrProtocolError) {
				s.trackError("protocol")
				_ = s.writeReply(conn, wire.ErrorReply(nil, err))
			} else {
				s.trackError("read")
			}
			return
		}

		if s.core != nil {
			s.core.RecordFrameReceived(s.name)
		}

		reply := s.dispatch(ctx, req)

		if err := s.writeReply(conn, reply); err != nil {
			if errors.Is(err, kerrors.ErrFrameTooLarge) {
				// The assembled reply blew the frame cap; the client gets
				// an error reply instead of silence.
				if s.writeReply(conn, wire.ErrorReply(req, err)) == nil {
					continue
				}
			}
			s.trackError("write")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *wire.Frame) *wire.Frame {
	start := time.Now()
	reply := s.dispatcher.Dispatch(ctx, req)
	if s.metrics != nil {
		s.metrics.dispatchDuration.WithLabelValues(s.name, string(reply.Status)).
			Observe(time.Since(start).Seconds())
		if reply.Status == wire.StatusError {
			s.metrics.errorsTotal.WithLabelValues(s.name, "dispatch").Inc()
		}
	}
	return reply
}

func (s *Server) writeReply(conn net.Conn, reply *wire.Frame) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := wire.WriteFrame(conn, reply, s.config.MaxFrameSize); err != nil {
		return err
	}
	if s.core != nil {
		s.core.RecordFrameSent(s.name)
	}
	return nil
}

func (s *Server) trackError(reason string) {
	if s.metrics != nil {
		s.metrics.errorsTotal.WithLabelValues(s.name, reason).Inc()
	}
}
