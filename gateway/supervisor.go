package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	kerrors "github.com/c360/simkernel/errors"
)

const defaultStopTimeout = 10 * time.Second

// Supervisor runs a set of listeners as one unit: all start together, the
// first failure tears the rest down, and context cancellation stops every
// listener with a bounded drain.
type Supervisor struct {
	servers     []Server
	logger      *slog.Logger
	stopTimeout time.Duration
}

// NewSupervisor builds a supervisor over the given listeners. stopTimeout
// bounds each listener's drain on shutdown; zero means 10 seconds.
func NewSupervisor(logger *slog.Logger, stopTimeout time.Duration, servers ...Server) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &Supervisor{
		servers:     servers,
		logger:      logger,
		stopTimeout: stopTimeout,
	}
}

// Run starts every listener and blocks until ctx is cancelled or one of
// them fails to start. Either way every started listener is stopped
// before Run returns; the returned error is the first start or stop
// failure, nil on a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.servers) == 0 {
		return kerrors.WrapInvalid(
			fmt.Errorf("no listeners configured: %w", kerrors.ErrMissingConfig),
			"Supervisor", "Run", "check listeners")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range s.servers {
		g.Go(func() error {
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("start %s: %w", srv.Name(), err)
			}
			s.logger.Info("listener started", "listener", srv.Name())

			<-ctx.Done()

			if err := srv.Stop(s.stopTimeout); err != nil {
				return fmt.Errorf("stop %s: %w", srv.Name(), err)
			}
			s.logger.Info("listener stopped", "listener", srv.Name())
			return nil
		})
	}
	return g.Wait()
}
