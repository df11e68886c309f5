package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fieldjob/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []map[string]interface{}
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := map[string]interface{}{"msg": msg}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		entry[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	m.errors = append(m.errors, entry)
}

func recordTo(calls *[]string, mu *sync.Mutex, name string) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, name)
		return nil
	}
}

func TestDispatch_ScopeOrder(t *testing.T) {
	d := NewDispatcher()
	var (
		mu    sync.Mutex
		calls []string
	)

	// registered widest first to prove ordering is by scope
	d.OnAll("all", recordTo(&calls, &mu, "all"))
	d.OnFamily("visit-family", "visit", recordTo(&calls, &mu, "visit-family"))
	d.On("step-1", recordTo(&calls, &mu, "step-1"), event.TypeStepChanged)
	d.On("step-2", recordTo(&calls, &mu, "step-2"), event.TypeStepChanged, event.TypeItemAdded)
	d.OnFamily("job-family", "job", recordTo(&calls, &mu, "job-family"))

	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeStepChanged, "job-1", nil)))
	assert.Equal(t, []string{"step-1", "step-2", "visit-family", "all"}, calls)

	calls = nil
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeJobCompleted, "job-1", nil)))
	assert.Equal(t, []string{"job-family", "all"}, calls)
}

func TestDispatch_FamilyNeedsSeparator(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.OnFamily("visitor", "visi", func(context.Context, *event.Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeVisitOpened, "job-1", nil)))
	assert.False(t, called)
}

func TestDispatch_FailuresDoNotStopOtherHandlers(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("disk full")
	reached := false

	d.OnAll("recorder", func(context.Context, *event.Event) error { return boom })
	d.OnAll("bridge", func(context.Context, *event.Event) error { panic("nil conn") })
	d.OnAll("audit", func(context.Context, *event.Event) error {
		reached = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeItemAdded, "job-7", nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "handler recorder failed")
	assert.Contains(t, err.Error(), "handler bridge failed: handler panic: nil conn")
	assert.True(t, reached)

	require.Len(t, logger.errors, 2)
	assert.Equal(t, "job-7", logger.errors[0]["job_id"])
	assert.Equal(t, "bridge", logger.errors[1]["handler_name"])

	stats := d.Stats()
	assert.Equal(t, HandlerStats{Delivered: 1, Failed: 1}, stats["recorder"])
	assert.Equal(t, HandlerStats{Delivered: 1, Failed: 1}, stats["bridge"])
	assert.Equal(t, HandlerStats{Delivered: 1}, stats["audit"])
}

func TestDispatch_ContextReachesHandlers(t *testing.T) {
	d := NewDispatcher()
	d.OnAll("ctx", func(ctx context.Context, _ *event.Event) error { return ctx.Err() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Dispatch(ctx, event.NewEvent(event.TypeVisitOpened, "job-1", nil)), context.Canceled)
}

func TestDispatch_NilEventAndClosed(t *testing.T) {
	d := NewDispatcher()
	assert.Error(t, d.Dispatch(context.Background(), nil))

	require.NoError(t, d.Close())
	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeVisitOpened, "job-1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
	assert.Error(t, d.Close(), "second close")
}

func TestOff(t *testing.T) {
	d := NewDispatcher()
	noop := func(context.Context, *event.Event) error { return nil }

	d.On("recorder", noop, event.TypeVisitOpened, event.TypeVisitClosed)
	d.OnAll("bridge", noop)
	d.Off("recorder")
	d.Off("unknown")

	assert.Equal(t, []HandlerInfo{{Name: "bridge", Pattern: "*"}}, d.Handlers(event.TypeVisitOpened))
	assert.Equal(t, []HandlerInfo{{Name: "bridge", Pattern: "*"}}, d.Handlers(event.TypeVisitClosed))
}

func TestHandlers(t *testing.T) {
	d := NewDispatcher()
	noop := func(context.Context, *event.Event) error { return nil }
	d.OnAll("bridge", noop)
	d.OnFamily("jobs", "job", noop)
	d.On("status", noop, event.TypeJobStatusUpdated)

	tests := []struct {
		name string
		typ  event.Type
		want []HandlerInfo
	}{
		{"exact and family", event.TypeJobStatusUpdated, []HandlerInfo{
			{Name: "status", Pattern: "job.status_updated"},
			{Name: "jobs", Pattern: "job.*"},
			{Name: "bridge", Pattern: "*"},
		}},
		{"family only", event.TypeWorkshopCreated, []HandlerInfo{
			{Name: "jobs", Pattern: "job.*"},
			{Name: "bridge", Pattern: "*"},
		}},
		{"wildcard only", event.TypeVisitOpened, []HandlerInfo{
			{Name: "bridge", Pattern: "*"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Handlers(tt.typ))
		})
	}
}

func TestDispatchAsync(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	var delivered atomic.Int32

	d.OnAll("slow", func(context.Context, *event.Event) error {
		time.Sleep(20 * time.Millisecond)
		delivered.Add(1)
		return nil
	})
	d.OnFamily("failing", "visit", func(context.Context, *event.Event) error {
		return errors.New("nope")
	})

	for i := 0; i < 5; i++ {
		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeVisitUpdated, "job-1", nil))
	}
	require.NoError(t, d.Close(), "close waits for async handlers")

	assert.Equal(t, int32(5), delivered.Load())
	assert.Equal(t, HandlerStats{Delivered: 5, Failed: 5}, d.Stats()["failing"])
	assert.Contains(t, logger.infos, "Dispatcher closed")

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeVisitUpdated, "job-1", nil))
	assert.Equal(t, "Cannot dispatch async event, dispatcher is closed", logger.errors[len(logger.errors)-1]["msg"])
}

func TestConcurrentBindAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var delivered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			d.OnAll(fmt.Sprintf("h-%d", i), func(context.Context, *event.Event) error {
				delivered.Add(1)
				return nil
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeStepChanged, "job-1", nil))
		}()
	}
	wg.Wait()

	delivered.Store(0)
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeStepChanged, "job-1", nil)))
	assert.Equal(t, int64(10), delivered.Load())
	assert.Len(t, d.Stats(), 10)
}
