package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper closes idle visits
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SessionSweeper evicts visits idle past the engine expiry. Evicted visits
// keep their snapshot and resume on the next request.
type SessionSweeper struct {
	*periodicWorker
	sweeper Sweeper
	logger  *zap.Logger
}

// NewSessionSweeper creates a sweeper running every interval
func NewSessionSweeper(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *SessionSweeper {
	s := &SessionSweeper{sweeper: sweeper, logger: logger}
	s.periodicWorker = newPeriodicWorker("SessionSweeper", interval, s.sweep, logger)
	return s
}

func (s *SessionSweeper) sweep(ctx context.Context) error {
	if n := s.sweeper.Sweep(ctx); n > 0 {
		s.logger.Info("Idle visits swept", zap.Int("count", n))
	}
	return nil
}
