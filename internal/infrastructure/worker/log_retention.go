package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/port"
)

// LogRetentionWorker deletes visit log rows older than the retention window
type LogRetentionWorker struct {
	*periodicWorker
	visitLog  port.VisitLogRepository
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewLogRetentionWorker creates a retention worker checking every interval
func NewLogRetentionWorker(visitLog port.VisitLogRepository, retention, interval time.Duration, logger *zap.Logger) *LogRetentionWorker {
	w := &LogRetentionWorker{
		visitLog:  visitLog,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
	w.periodicWorker = newPeriodicWorker("LogRetentionWorker", interval, w.purge, logger)
	return w
}

func (w *LogRetentionWorker) purge(ctx context.Context) error {
	cutoff := w.now().Add(-w.retention)
	n, err := w.visitLog.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge visit log before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		w.logger.Info("Visit log purged",
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
