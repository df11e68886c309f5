package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// VisitLogRepository implements port.VisitLogRepository
type VisitLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVisitLogRepository creates a new visit log repository
func NewVisitLogRepository(db *sql.DB, logger *zap.Logger) port.VisitLogRepository {
	return &VisitLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a record to the audit trail
func (r *VisitLogRepository) Create(ctx context.Context, record *entity.VisitLogRecord) error {
	query := `
		INSERT INTO visit_log (
			job_id, session_id, event_type, action, from_step, to_step,
			total, action_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		record.JobID,
		record.SessionID,
		record.EventType,
		record.Action,
		record.FromStep,
		record.ToStep,
		record.Total,
		record.ActionData,
		ts.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create visit log record",
			zap.String("job_id", record.JobID),
			zap.String("event_type", record.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to create visit log record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	record.Timestamp = ts.UTC()
	return nil
}

// GetByJobID retrieves the audit trail of a job in insertion order
func (r *VisitLogRepository) GetByJobID(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error) {
	query := `
		SELECT id, job_id, session_id, event_type, action, from_step, to_step,
			total, action_data, timestamp
		FROM visit_log
		WHERE job_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, jobID)
	if err != nil {
		r.logger.Error("Failed to get visit log by job ID", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("failed to get visit log: %w", err)
	}
	defer rows.Close()

	records := []*entity.VisitLogRecord{}
	for rows.Next() {
		var record entity.VisitLogRecord
		err := rows.Scan(
			&record.ID,
			&record.JobID,
			&record.SessionID,
			&record.EventType,
			&record.Action,
			&record.FromStep,
			&record.ToStep,
			&record.Total,
			&record.ActionData,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit log record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// DeleteBefore removes records older than t and returns how many went
func (r *VisitLogRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM visit_log WHERE timestamp < ?", t.UTC())
	if err != nil {
		r.logger.Error("Failed to prune visit log", zap.Time("before", t), zap.Error(err))
		return 0, fmt.Errorf("failed to prune visit log: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Verify interface compliance
var _ port.VisitLogRepository = (*VisitLogRepository)(nil)
