package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SnapshotRepository implements port.SnapshotRepository
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) port.SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the snapshot of a job
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *entity.VisitSnapshot) error {
	query := `
		INSERT INTO visit_snapshots (job_id, session_id, step, total, state, job, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			session_id = excluded.session_id,
			step = excluded.step,
			total = excluded.total,
			state = excluded.state,
			job = excluded.job,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		snapshot.JobID,
		snapshot.SessionID,
		snapshot.Step,
		snapshot.Total,
		snapshot.State,
		snapshot.Job,
		snapshot.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert visit snapshot", zap.String("job_id", snapshot.JobID), zap.Error(err))
		return fmt.Errorf("failed to upsert visit snapshot: %w", err)
	}
	return nil
}

// GetByJobID returns the snapshot of a job, or nil when there is none
func (r *SnapshotRepository) GetByJobID(ctx context.Context, jobID string) (*entity.VisitSnapshot, error) {
	query := `
		SELECT job_id, session_id, step, total, state, job, updated_at
		FROM visit_snapshots
		WHERE job_id = ?
	`

	var snap entity.VisitSnapshot
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, jobID).Scan(
		&snap.JobID,
		&snap.SessionID,
		&snap.Step,
		&snap.Total,
		&snap.State,
		&snap.Job,
		&snap.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get visit snapshot", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("failed to get visit snapshot: %w", err)
	}

	return &snap, nil
}

// Delete removes the snapshot of a job
func (r *SnapshotRepository) Delete(ctx context.Context, jobID string) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM visit_snapshots WHERE job_id = ?", jobID)
	if err != nil {
		r.logger.Error("Failed to delete visit snapshot", zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("failed to delete visit snapshot: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.SnapshotRepository = (*SnapshotRepository)(nil)
