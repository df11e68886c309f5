package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// engineImpl is the concrete implementation of VisitEngine
type engineImpl struct {
	api        port.JobAPI
	snapshots  port.SnapshotRepository
	visitLog   port.VisitLogRepository
	dispatcher dispatcher.Dispatcher
	renderer   port.InvoiceRenderer
	logger     Logger
	now        func() time.Time

	timerInterval time.Duration

	// Open visits per job id
	mu          sync.RWMutex
	sessions    map[string]*Session
	lastAccess  map[string]time.Time
	cacheExpiry time.Duration
}

// EngineOption configures the visit engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithCacheExpiry sets how long an idle visit stays in memory
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// WithSnapshots enables resuming visits from persisted snapshots
func WithSnapshots(repo port.SnapshotRepository) EngineOption {
	return func(e *engineImpl) {
		e.snapshots = repo
	}
}

// WithVisitLog enables reading the persisted audit trail
func WithVisitLog(repo port.VisitLogRepository) EngineOption {
	return func(e *engineImpl) {
		e.visitLog = repo
	}
}

// WithInvoiceRenderer sets the renderer handed to every session
func WithInvoiceRenderer(r port.InvoiceRenderer) EngineOption {
	return func(e *engineImpl) {
		e.renderer = r
	}
}

// WithLogger sets the engine and session logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithTimerTick sets the service timer interval of new sessions
func WithTimerTick(d time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.timerInterval = d
	}
}

// WithClock overrides the engine clock
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new visit engine
func NewEngine(api port.JobAPI, opts ...EngineOption) VisitEngine {
	e := &engineImpl{
		api:           api,
		logger:        nopLogger{},
		now:           time.Now,
		timerInterval: time.Second,
		sessions:      make(map[string]*Session),
		lastAccess:    make(map[string]time.Time),
		cacheExpiry:   30 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open starts a visit or returns the one already open for the job
func (e *engineImpl) Open(ctx context.Context, job entity.Job) (Orchestrator, error) {
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		return nil, domainwf.NewValidationError("job_id")
	}
	if job.FinalPrice < 0 {
		return nil, domainwf.NewValidationError("final_price")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s := e.liveLocked(ctx, job.ID); s != nil {
		return s, nil
	}

	state := domainwf.NewState(job.FinalPrice)
	sessionID := ""
	resumed := false

	snap, err := e.loadSnapshot(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		state, sessionID = snap.state, snap.sessionID
		if snap.job.ID != "" {
			job = mergeJob(snap.job, job)
		}
		resumed = true
	}

	s := e.startLocked(job, state, sessionID)
	s.emit(ctx, event.TypeVisitOpened, map[string]interface{}{event.KeyResumed: resumed})

	e.logger.Info("Visit opened",
		"job_id", job.ID,
		"session_id", s.ID(),
		"resumed", resumed,
		"step", state.Step.String(),
	)

	return s, nil
}

// Get returns the open visit, resuming an evicted one from its snapshot
func (e *engineImpl) Get(ctx context.Context, jobID string) (Orchestrator, error) {
	e.mu.RLock()
	s, exists := e.sessions[jobID]
	e.mu.RUnlock()

	if exists {
		e.mu.Lock()
		if !e.expiredLocked(jobID) {
			e.lastAccess[jobID] = e.now()
			e.mu.Unlock()
			return s, nil
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// another caller may have resumed it meanwhile
	if s := e.liveLocked(ctx, jobID); s != nil {
		return s, nil
	}

	snap, err := e.loadSnapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, jobID)
	}

	job := snap.job
	job.ID = jobID
	s = e.startLocked(job, snap.state, snap.sessionID)
	s.emit(ctx, event.TypeVisitOpened, map[string]interface{}{event.KeyResumed: true})

	e.logger.Info("Visit resumed from snapshot",
		"job_id", jobID,
		"session_id", s.ID(),
		"step", snap.state.Step.String(),
	)

	return s, nil
}

// Close stops the visit of a job
func (e *engineImpl) Close(ctx context.Context, jobID string) error {
	e.mu.Lock()
	s, ok := e.sessions[jobID]
	delete(e.sessions, jobID)
	delete(e.lastAccess, jobID)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, jobID)
	}

	s.Close(ctx)
	e.logger.Info("Visit closed", "job_id", jobID, "session_id", s.ID())
	return nil
}

// History returns the persisted audit trail of a job
func (e *engineImpl) History(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error) {
	if e.visitLog == nil {
		return []*entity.VisitLogRecord{}, nil
	}

	records, err := e.visitLog.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load visit log: %w", err)
	}
	return records, nil
}

// Sweep closes idle visits; their snapshots let Get bring them back
func (e *engineImpl) Sweep(ctx context.Context) int {
	e.mu.Lock()
	var idle []*Session
	for jobID, s := range e.sessions {
		if e.expiredLocked(jobID) {
			idle = append(idle, s)
			delete(e.sessions, jobID)
			delete(e.lastAccess, jobID)
		}
	}
	e.mu.Unlock()

	for _, s := range idle {
		s.Close(ctx)
	}

	if len(idle) > 0 {
		e.logger.Info("Idle visits swept", "count", len(idle))
	}
	return len(idle)
}

// Active returns the number of open visits
func (e *engineImpl) Active() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown closes every open visit
func (e *engineImpl) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[string]*Session)
	e.lastAccess = make(map[string]time.Time)
	e.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}

	e.logger.Info("Visit engine stopped", "closed_sessions", len(sessions))
	return ctx.Err()
}

func (e *engineImpl) expiredLocked(jobID string) bool {
	last, ok := e.lastAccess[jobID]
	return ok && e.now().Sub(last) >= e.cacheExpiry
}

// liveLocked returns the unexpired session of a job and touches it.
// An expired one is removed and closed with e.mu released, since Close
// waits for a remote call in flight on that session.
func (e *engineImpl) liveLocked(ctx context.Context, jobID string) *Session {
	for {
		s, ok := e.sessions[jobID]
		if !ok {
			return nil
		}
		if !e.expiredLocked(jobID) {
			e.lastAccess[jobID] = e.now()
			return s
		}

		delete(e.sessions, jobID)
		delete(e.lastAccess, jobID)

		e.mu.Unlock()
		s.Close(ctx)
		e.mu.Lock()
		// re-check: another caller may have opened the job meanwhile
	}
}

func (e *engineImpl) startLocked(job entity.Job, state domainwf.State, sessionID string) *Session {
	opts := []SessionOption{
		WithSessionLogger(e.logger),
		WithTimerInterval(e.timerInterval),
		WithSessionClock(e.now),
	}
	if sessionID != "" {
		opts = append(opts, WithSessionID(sessionID))
	}
	if e.dispatcher != nil {
		opts = append(opts, WithEvents(e.dispatcher))
	}
	if e.renderer != nil {
		opts = append(opts, WithRenderer(e.renderer))
	}

	s := NewSession(job, state, e.api, opts...)
	e.sessions[job.ID] = s
	e.lastAccess[job.ID] = e.now()
	return s
}

type resumePoint struct {
	sessionID string
	state     domainwf.State
	job       entity.Job
}

func (e *engineImpl) loadSnapshot(ctx context.Context, jobID string) (*resumePoint, error) {
	if e.snapshots == nil {
		return nil, nil
	}

	snap, err := e.snapshots.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load visit snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil
	}

	rp := &resumePoint{sessionID: snap.SessionID}
	if err := json.Unmarshal([]byte(snap.State), &rp.state); err != nil {
		return nil, fmt.Errorf("corrupt visit snapshot for job %s: %w", jobID, err)
	}
	if !rp.state.Step.IsValid() {
		return nil, fmt.Errorf("corrupt visit snapshot for job %s: invalid step %q", jobID, rp.state.Step)
	}
	if len(rp.state.Photos) != len(domainwf.PhotoCategories) {
		photos := make([]bool, len(domainwf.PhotoCategories))
		copy(photos, rp.state.Photos)
		rp.state.Photos = photos
	}
	if snap.Job != "" {
		if err := json.Unmarshal([]byte(snap.Job), &rp.job); err != nil {
			return nil, fmt.Errorf("corrupt visit snapshot for job %s: %w", jobID, err)
		}
	}

	return rp, nil
}

// mergeJob keeps persisted job details unless the caller supplied newer ones
func mergeJob(persisted, given entity.Job) entity.Job {
	out := persisted
	out.ID = given.ID
	if given.CustomerName != "" {
		out.CustomerName = given.CustomerName
	}
	if given.Address != "" {
		out.Address = given.Address
	}
	if given.Phone != "" {
		out.Phone = given.Phone
	}
	if given.Description != "" {
		out.Description = given.Description
	}
	return out
}
