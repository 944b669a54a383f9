// Package ws serves the frame protocol over WebSocket: one XML document
// per text message, replies written in request order on the same
// connection. The WebSocket layer frames messages, so a malformed
// document costs only an error reply, not the connection.
package ws

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/gateway"
	"github.com/c360/simkernel/metric"
	"github.com/c360/simkernel/pkg/security"
	"github.com/c360/simkernel/pkg/tlsutil"
	"github.com/c360/simkernel/wire"
)

const defaultWriteTimeout = 10 * time.Second

// Config holds the WebSocket listener settings.
type Config struct {
	// Addr is the listen address. Empty means all interfaces on
	// gateway.DefaultWSPort.
	Addr string `json:"addr,omitempty"`

	// Path is the HTTP endpoint path. Empty means "/".
	Path string `json:"path,omitempty"`

	// AuthToken enables bearer-token authentication on the upgrade
	// request when non-empty.
	AuthToken string `json:"auth_token,omitempty"`

	// MaxFrameSize caps one document in bytes, both directions. 0 means
	// wire.DefaultMaxFrameSize.
	MaxFrameSize uint32 `json:"max_frame_size,omitempty"`

	// WriteTimeout bounds writing one reply. 0 means 10s.
	WriteTimeout time.Duration `json:"write_timeout,omitempty"`

	// ReadBufferSize and WriteBufferSize size the per-connection upgrade
	// buffers. 0 means the gorilla defaults.
	ReadBufferSize  int `json:"read_buffer_size,omitempty"`
	WriteBufferSize int `json:"write_buffer_size,omitempty"`

	// TLS serves wss when Enabled.
	TLS security.ServerTLSConfig `json:"tls,omitempty"`
}

// Server upgrades HTTP connections on one path and dispatches the frames
// received on them. One reader goroutine per client decodes, dispatches,
// and replies in strict arrival order; distinct clients are served
// concurrently.
type Server struct {
	name       string
	config     Config
	dispatcher gateway.Dispatcher
	logger     *slog.Logger
	core       *metric.Metrics
	metrics    *listenerMetrics

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
	clients    map[string]*websocket.Conn
	clientsMu  sync.Mutex
	clientSeq  atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	lifecycleMu  sync.Mutex
	wg           sync.WaitGroup
}

var _ gateway.Server = (*Server)(nil)

// NewServer builds a WebSocket listener around a dispatcher. A nil
// registry disables metrics; a nil logger falls back to slog.Default.
func NewServer(
	name string,
	dispatcher gateway.Dispatcher,
	config Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*Server, error) {
	if name == "" {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("empty listener name"), "ws_gateway", "NewServer", "validate name")
	}
	if dispatcher == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nil dispatcher"), "ws_gateway", "NewServer", "validate dispatcher")
	}
	if config.Addr == "" {
		config.Addr = fmt.Sprintf(":%d", gateway.DefaultWSPort)
	}
	if config.Path == "" {
		config.Path = "/"
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
		clients:    make(map[string]*websocket.Conn),
		shutdown:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		// The protocol is not browser-facing; origin checks do not apply.
		CheckOrigin: func(*http.Request) bool { return true },
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

// Start binds the listener and begins serving upgrade requests.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return kerrors.WrapFatal(kerrors.ErrAlreadyStarted, "ws_gateway", "Start", "check started state")
	}
	select {
	case <-s.shutdown:
		return kerrors.WrapFatal(kerrors.ErrShuttingDown, "ws_gateway", "Start", "check stopped state")
	default:
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return kerrors.WrapFatal(err, "ws_gateway", "Start", "listen "+s.config.Addr)
	}

	if s.config.TLS.Enabled {
		tlsCfg, err := tlsutil.LoadServerTLSConfigWithMTLS(s.config.TLS, s.config.TLS.MTLS)
		if err != nil {
			ln.Close()
			return kerrors.WrapFatal(err, "ws_gateway", "Start", "load TLS config")
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(ctx, w, r)
	})

	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("websocket server exited", "listener", s.name, "error", err)
		}
	}()

	s.started.Store(true)
	s.logger.Info("websocket gateway listening",
		"listener", s.name, "addr", ln.Addr().String(),
		"path", s.config.Path, "tls", s.config.TLS.Enabled)
	return nil
}

// Stop shuts the HTTP server down, wakes blocked readers, and waits for
// per-client handlers to finish their in-flight request. Connections
// still open after the timeout are force-closed; the server stays
// terminally stopped either way.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.started.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(ctx)
	}

	// Expiring the read deadline wakes readers blocked between messages;
	// a reader mid-dispatch still writes its reply before it notices.
	s.clientsMu.Lock()
	for _, conn := range s.clients {
		conn.SetReadDeadline(time.Now())
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.closeClients()
		return kerrors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"ws_gateway", "Stop", "wait for connections")
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for id, conn := range s.clients {
		conn.Close()
		delete(s.clients, id)
	}
}

func (s *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(r) {
		s.trackError("auth_failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.trackError("upgrade")
		return
	}

	select {
	case <-s.shutdown:
		conn.Close()
		return
	default:
	}

	conn.SetReadLimit(int64(s.config.MaxFrameSize))
	id := fmt.Sprintf("client-%d", s.clientSeq.Add(1))
	s.clientsMu.Lock()
	s.clients[id] = conn
	s.clientsMu.Unlock()

	if s.core != nil {
		s.core.RecordConnectionOpened(s.name)
	}
	s.wg.Add(1)
	go s.handleClient(ctx, id, conn)
}

// authenticate checks the bearer token on the upgrade request. An empty
// configured token disables authentication.
func (s *Server) authenticate(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AuthToken)) == 1
}

// handleClient is the per-client loop: read one document, dispatch it,
// write the reply, repeat. Returning drops the connection.
func (s *Server) handleClient(ctx context.Context, id string, conn *websocket.Conn) {
	defer s.wg.Done()
	remote := conn.RemoteAddr().String()
	s.logger.Debug("client connected", "listener", s.name, "remote", remote)

	defer func() {
		conn.Close()
		s.clientsMu.Lock()
		delete(s.clients, id)
		s.clientsMu.Unlock()
		if s.core != nil {
			s.core.RecordConnectionClosed(s.name)
		}
		s.logger.Debug("client disconnected", "listener", s.name, "remote", remote)
	}()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// Stop wakes blocked readers by expiring the read deadline.
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				// gorilla has already sent the 1009 close frame.
				s.trackError("protocol")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.trackError("read")
				s.logger.Debug("connection read failed",
					"listener", s.name, "remote", remote, "error", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			s.trackError("protocol")
			err := fmt.Errorf("binary message not supported: %w", kerrors.ErrProtocolError)
			if s.writeReply(conn, wire.ErrorReply(nil, err)) != nil {
				return
			}
			continue
		}

		req, err := wire.Decode(data)
		if err != nil {
			// The message boundary is intact, so a bad document costs an
			// error reply, not the connection.
			s.trackError("protocol")
			if s.writeReply(conn, wire.ErrorReply(nil, err)) != nil {
				return
			}
			continue
		}

		if s.core != nil {
			s.core.RecordFrameReceived(s.name)
		}

		reply := s.dispatch(ctx, req)

		if err := s.writeReply(conn, reply); err != nil {
			if errors.Is(err, kerrors.ErrFrameTooLarge) {
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

func (s *Server) writeReply(conn *websocket.Conn, reply *wire.Frame) error {
	data, err := wire.Encode(reply)
	if err != nil {
		return err
	}
	if uint64(len(data)) > uint64(s.config.MaxFrameSize) {
		return fmt.Errorf("reply length %d exceeds cap %d: %w",
			len(data), s.config.MaxFrameSize, kerrors.ErrFrameTooLarge)
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
