// Package nats bridges the frame protocol onto NATS request-reply: one
// request envelope per message, dispatched through a bounded worker pool,
// the reply envelope published to the message's reply subject. Multiple
// bridge instances share the subject through a queue group.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/gateway"
	"github.com/c360/simkernel/metric"
	"github.com/c360/simkernel/natsclient"
	"github.com/c360/simkernel/pkg/timestamp"
	"github.com/c360/simkernel/pkg/worker"
	"github.com/c360/simkernel/wire"
)

const (
	// DefaultSubject is the request subject served when none is
	// configured.
	DefaultSubject = "simkernel.dispatch"

	// DefaultQueue is the queue group joined when none is configured.
	DefaultQueue = "simkernel"

	defaultWorkers         = 4
	defaultQueueSize       = 256
	defaultDispatchTimeout = 30 * time.Second
)

// Envelope type discriminators.
const (
	EnvelopeRequest = "request"
	EnvelopeReply   = "reply"
)

// Envelope wraps one frame document for NATS transport. Payload carries
// the XML document as a JSON string; Timestamp is RFC3339 UTC.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewRequestEnvelope wraps an encoded frame document in a request
// envelope for publishing to the bridge subject.
func NewRequestEnvelope(doc []byte) ([]byte, error) {
	payload, err := json.Marshal(string(doc))
	if err != nil {
		return nil, kerrors.Wrap(err, "nats_gateway", "NewRequestEnvelope", "encode payload")
	}
	return json.Marshal(Envelope{
		Type:      EnvelopeRequest,
		ID:        uuid.NewString(),
		Timestamp: timestamp.Format(timestamp.Now()),
		Payload:   payload,
	})
}

// OpenReplyEnvelope unwraps a reply envelope back into its frame.
func OpenReplyEnvelope(data []byte) (*wire.Frame, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %v: %w", err, kerrors.ErrProtocolError)
	}
	if env.Type != EnvelopeReply {
		return nil, fmt.Errorf("envelope type %q is not a reply: %w", env.Type, kerrors.ErrProtocolError)
	}
	var doc string
	if err := json.Unmarshal(env.Payload, &doc); err != nil {
		return nil, fmt.Errorf("envelope payload: %v: %w", err, kerrors.ErrProtocolError)
	}
	return wire.Decode([]byte(doc))
}

func encodeReplyEnvelope(id string, reply *wire.Frame) ([]byte, error) {
	doc, err := wire.Encode(reply)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(string(doc))
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	return json.Marshal(Envelope{
		Type:      EnvelopeReply,
		ID:        id,
		Timestamp: timestamp.Format(timestamp.Now()),
		Payload:   payload,
	})
}

// Config holds the NATS bridge settings.
type Config struct {
	// Subject is the request subject. Empty means DefaultSubject.
	Subject string `json:"subject,omitempty"`

	// Queue is the queue group name. Empty means DefaultQueue.
	Queue string `json:"queue,omitempty"`

	// Workers and QueueSize bound the dispatch pool. 0 means 4 workers
	// and a queue of 256.
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// DispatchTimeout bounds one dispatch. 0 means 30s.
	DispatchTimeout time.Duration `json:"dispatch_timeout,omitempty"`
}

// Server subscribes to the request subject and dispatches each message
// through a bounded worker pool. Unlike the socket listeners there is no
// per-connection ordering; NATS messages are independent requests.
type Server struct {
	name       string
	config     Config
	dispatcher gateway.Dispatcher
	client     *natsclient.Client
	logger     *slog.Logger
	core       *metric.Metrics
	metrics    *listenerMetrics

	pool *worker.Pool[job]

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	lifecycleMu  sync.Mutex
}

// job is one queued request: the raw envelope bytes and the respond
// function bound to the message's reply subject.
type job struct {
	data    []byte
	respond func([]byte) error
}

var _ gateway.Server = (*Server)(nil)

// NewServer builds a NATS bridge around a dispatcher and an established
// client. The caller owns the client's lifecycle; the bridge only
// subscribes on it. A nil registry disables metrics; a nil logger falls
// back to slog.Default.
func NewServer(
	name string,
	dispatcher gateway.Dispatcher,
	client *natsclient.Client,
	config Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*Server, error) {
	if name == "" {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("empty listener name"), "nats_gateway", "NewServer", "validate name")
	}
	if dispatcher == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nil dispatcher"), "nats_gateway", "NewServer", "validate dispatcher")
	}
	if client == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nil client"), "nats_gateway", "NewServer", "validate client")
	}
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	if config.DispatchTimeout <= 0 {
		config.DispatchTimeout = defaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		name:       name,
		config:     config,
		dispatcher: dispatcher,
		client:     client,
		logger:     logger,
		shutdown:   make(chan struct{}),
	}
	var opts []worker.Option[job]
	if registry != nil {
		s.core = registry.CoreMetrics()
		s.metrics = newMetrics(registry, name)
		opts = append(opts, worker.WithMetricsRegistry[job](registry, name+"_dispatch"))
	}
	s.pool = worker.NewPool(config.Workers, config.QueueSize, s.process, opts...)
	return s, nil
}

// Name returns the listener name used in logs and metric labels.
func (s *Server) Name() string { return s.name }

// Start launches the worker pool and subscribes to the request subject.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started.Load() {
		return kerrors.WrapFatal(kerrors.ErrAlreadyStarted, "nats_gateway", "Start", "check started state")
	}
	select {
	case <-s.shutdown:
		return kerrors.WrapFatal(kerrors.ErrShuttingDown, "nats_gateway", "Start", "check stopped state")
	default:
	}

	if err := s.pool.Start(ctx); err != nil {
		return kerrors.WrapFatal(err, "nats_gateway", "Start", "start worker pool")
	}
	if err := s.client.SubscribeRequestAsync(ctx, s.config.Subject, s.config.Queue, s.onMessage); err != nil {
		s.pool.Stop(time.Second)
		return err
	}

	s.started.Store(true)
	s.logger.Info("nats gateway serving",
		"listener", s.name, "subject", s.config.Subject,
		"queue", s.config.Queue, "workers", s.config.Workers)
	return nil
}

// Stop drains the worker pool. The subscription stays on the shared
// client; late messages get a shutting-down error reply until the
// client's owner closes it.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started.Load() {
		return nil
	}

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.started.Store(false)

	if err := s.pool.Stop(timeout); err != nil {
		return kerrors.WrapTransient(err, "nats_gateway", "Stop", "drain worker pool")
	}
	return nil
}

// onMessage runs on the NATS delivery goroutine; it must not block, so
// the work is queued and overload answered immediately.
func (s *Server) onMessage(_ context.Context, data []byte, respond func([]byte) error) {
	select {
	case <-s.shutdown:
		s.respondError(respond, "", kerrors.ErrShuttingDown)
		return
	default:
	}

	if err := s.pool.Submit(job{data: data, respond: respond}); err != nil {
		s.trackError("busy")
		s.respondError(respond, "", fmt.Errorf("dispatch queue full: %w", err))
	}
}

// process is the pool processor: one message, one dispatch, one reply.
func (s *Server) process(ctx context.Context, j job) error {
	tctx, cancel := context.WithTimeout(ctx, s.config.DispatchTimeout)
	defer cancel()

	reply := s.handleRequest(tctx, j.data)
	if err := j.respond(reply); err != nil {
		s.trackError("respond")
		s.logger.Warn("nats reply publish failed", "listener", s.name, "error", err)
		return err
	}
	if s.core != nil {
		s.core.RecordFrameSent(s.name)
	}
	return nil
}

// handleRequest turns one request envelope into one reply envelope.
// Malformed input still produces a reply envelope carrying an error
// frame, never silence.
func (s *Server) handleRequest(ctx context.Context, data []byte) []byte {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.trackError("protocol")
		return s.errorEnvelope("", fmt.Errorf("malformed envelope: %v: %w", err, kerrors.ErrProtocolError))
	}
	if env.Type != EnvelopeRequest {
		s.trackError("protocol")
		return s.errorEnvelope(env.ID, fmt.Errorf("envelope type %q is not a request: %w", env.Type, kerrors.ErrProtocolError))
	}
	var doc string
	if err := json.Unmarshal(env.Payload, &doc); err != nil {
		s.trackError("protocol")
		return s.errorEnvelope(env.ID, fmt.Errorf("envelope payload: %v: %w", err, kerrors.ErrProtocolError))
	}
	req, err := wire.Decode([]byte(doc))
	if err != nil {
		s.trackError("protocol")
		return s.errorEnvelope(env.ID, err)
	}

	if s.core != nil {
		s.core.RecordFrameReceived(s.name)
	}

	reply := s.dispatch(ctx, req)
	out, err := encodeReplyEnvelope(env.ID, reply)
	if err != nil {
		s.trackError("encode")
		return s.errorEnvelope(env.ID, err)
	}
	return out
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

// errorEnvelope builds a reply envelope around an uncorrelated error
// frame. Error frames carry no argument values, so encoding them cannot
// fail.
func (s *Server) errorEnvelope(id string, err error) []byte {
	out, _ := encodeReplyEnvelope(id, wire.ErrorReply(nil, err))
	return out
}

func (s *Server) respondError(respond func([]byte) error, id string, err error) {
	if respondErr := respond(s.errorEnvelope(id, err)); respondErr != nil {
		s.logger.Warn("nats reply publish failed", "listener", s.name, "error", respondErr)
	}
}

func (s *Server) trackError(reason string) {
	if s.metrics != nil {
		s.metrics.errorsTotal.WithLabelValues(s.name, reason).Inc()
	}
}
