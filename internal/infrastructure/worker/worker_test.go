package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/domain/entity"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(ctx context.Context) int {
	s.calls.Add(1)
	return 1
}

type mockVisitLogRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (m *mockVisitLogRepo) Create(ctx context.Context, record *entity.VisitLogRecord) error {
	return nil
}

func (m *mockVisitLogRepo) GetByJobID(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error) {
	return nil, nil
}

func (m *mockVisitLogRepo) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, t)
	return 3, m.err
}

func (m *mockVisitLogRepo) calls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.cutoffs...)
}

type stubWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *stubWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *stubWorker) Stop() error {
	*w.log = append(*w.log, "stop "+w.name)
	return nil
}

func (w *stubWorker) Name() string { return w.name }

func TestWorkerManager_StatusFromReporter(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	sweeper := NewSessionSweeper(&countingSweeper{}, 5*time.Millisecond, zap.NewNop())
	m.Register(sweeper)

	require.NoError(t, m.StartAll(context.Background()))
	assert.Eventually(t, func() bool { return m.Statuses()[0].Runs > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.StopAll())

	st := m.Statuses()[0]
	assert.Equal(t, "SessionSweeper", st.Name)
	assert.Zero(t, st.Failures)
}

func TestSessionSweeper_Ticks(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSessionSweeper(sweeper, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	after := sweeper.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load(), "no sweeps after Stop returns")
	assert.Equal(t, "SessionSweeper", w.Name())
}

func TestPeriodicWorker_StartTwice(t *testing.T) {
	w := NewSessionSweeper(&countingSweeper{}, time.Hour, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestPeriodicWorker_InvalidInterval(t *testing.T) {
	w := NewSessionSweeper(&countingSweeper{}, 0, zap.NewNop())
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestPeriodicWorker_StopsOnParentCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSessionSweeper(sweeper, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after parent cancel")
	}
}

func TestLogRetentionWorker_Purge(t *testing.T) {
	repo := &mockVisitLogRepo{}
	w := NewLogRetentionWorker(repo, 24*time.Hour, time.Hour, zap.NewNop())
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.purge(context.Background()))

	require.Len(t, repo.calls(), 1)
	assert.Equal(t, now.Add(-24*time.Hour), repo.calls()[0])
}

func TestLogRetentionWorker_PurgeError(t *testing.T) {
	repo := &mockVisitLogRepo{err: errors.New("disk I/O error")}
	w := NewLogRetentionWorker(repo, time.Hour, time.Hour, zap.NewNop())

	err := w.purge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Len(t, repo.calls(), 1)
}

func TestPeriodicWorker_RecordsFailuresAndPanics(t *testing.T) {
	var n atomic.Int32
	w := newPeriodicWorker("flaky", 5*time.Millisecond, func(context.Context) error {
		switch n.Add(1) {
		case 1:
			return errors.New("first run fails")
		case 2:
			panic("second run panics")
		default:
			return nil
		}
	}, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.Status().Runs >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	st := w.Status()
	assert.Equal(t, "flaky", st.Name)
	assert.False(t, st.Running)
	assert.Equal(t, uint64(2), st.Failures)
	assert.Empty(t, st.LastErr, "last run succeeded")
	assert.False(t, st.LastRun.IsZero())
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", log: &log})
	m.Register(&stubWorker{name: "broken", startErr: errors.New("boom"), log: &log})
	m.Register(&stubWorker{name: "b", log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Equal(t, 3, m.Count())
	assert.Error(t, m.StartAll(context.Background()))

	assert.Equal(t, []Status{
		{Name: "a", Running: true},
		{Name: "broken"},
		{Name: "b", Running: true},
	}, m.Statuses())

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	for _, st := range m.Statuses() {
		assert.False(t, st.Running, st.Name)
	}

	require.NoError(t, m.StopAll())
}
