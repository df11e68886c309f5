package port

import (
	"context"
	"time"

	"github.com/garyjia/fieldjob/internal/domain/entity"
)

// VisitLogRepository defines persistence operations for the visit audit trail
type VisitLogRepository interface {
	Create(ctx context.Context, record *entity.VisitLogRecord) error
	GetByJobID(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error)
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// SnapshotRepository stores the latest state of each visit so it can be resumed
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *entity.VisitSnapshot) error
	GetByJobID(ctx context.Context, jobID string) (*entity.VisitSnapshot, error)
	Delete(ctx context.Context, jobID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
