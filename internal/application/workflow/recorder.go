package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// payload keys that are stored in their own columns or in the snapshot
var recordedElsewhere = map[string]bool{
	event.KeySessionID: true,
	event.KeyState:     true,
	event.KeyJob:       true,
	event.KeyAction:    true,
	event.KeyFromStep:  true,
	event.KeyToStep:    true,
	event.KeyStep:      true,
	event.KeyTotal:     true,
}

// VisitRecorder persists visit events as an audit trail and keeps the
// latest snapshot of each visit
type VisitRecorder struct {
	visitLog  port.VisitLogRepository
	snapshots port.SnapshotRepository
	txManager port.TransactionManager
}

// NewVisitRecorder creates a recorder writing through the given repositories
func NewVisitRecorder(
	visitLog port.VisitLogRepository,
	snapshots port.SnapshotRepository,
	txManager port.TransactionManager,
) *VisitRecorder {
	return &VisitRecorder{
		visitLog:  visitLog,
		snapshots: snapshots,
		txManager: txManager,
	}
}

// Register subscribes the recorder to every visit event
func (r *VisitRecorder) Register(d dispatcher.Dispatcher) {
	d.OnAll("visit-recorder", r.Handle)
}

// Handle writes one log record and, when the event carries state, the
// snapshot, in a single transaction
func (r *VisitRecorder) Handle(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	record, err := buildLogRecord(evt)
	if err != nil {
		return err
	}

	snapshot, err := buildSnapshot(evt)
	if err != nil {
		return err
	}

	return r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.visitLog.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create visit log record: %w", err)
		}

		if snapshot != nil {
			if err := r.snapshots.Upsert(txCtx, snapshot); err != nil {
				return fmt.Errorf("failed to upsert visit snapshot: %w", err)
			}
		}

		return nil
	})
}

func buildLogRecord(evt *event.Event) (*entity.VisitLogRecord, error) {
	data := make(map[string]interface{})
	for k, v := range evt.Payload {
		if !recordedElsewhere[k] {
			data[k] = v
		}
	}

	actionData := ""
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action data: %w", err)
		}
		actionData = string(raw)
	}

	from, to := evt.Transition()

	return &entity.VisitLogRecord{
		JobID:      evt.JobID,
		SessionID:  evt.SessionID(),
		EventType:  evt.Type.String(),
		Action:     evt.GetPayloadString(event.KeyAction),
		FromStep:   from,
		ToStep:     to,
		Total:      evt.GetPayloadFloat(event.KeyTotal),
		ActionData: actionData,
		Timestamp:  evt.Timestamp,
	}, nil
}

func buildSnapshot(evt *event.Event) (*entity.VisitSnapshot, error) {
	st, ok := evt.Payload[event.KeyState].(domainwf.State)
	if !ok {
		return nil, nil
	}

	rawState, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode visit state: %w", err)
	}

	snapshot := &entity.VisitSnapshot{
		JobID:     evt.JobID,
		SessionID: evt.SessionID(),
		Step:      st.Step.String(),
		Total:     st.ComputeTotal(),
		State:     string(rawState),
		UpdatedAt: evt.Timestamp,
	}

	if job, ok := evt.Payload[event.KeyJob].(entity.Job); ok {
		rawJob, err := json.Marshal(job)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job: %w", err)
		}
		snapshot.Job = string(rawJob)
	}

	return snapshot, nil
}
