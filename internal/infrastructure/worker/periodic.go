package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// periodicWorker runs a task on a fixed interval until stopped
type periodicWorker struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   *zap.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	runs     uint64
	failures uint64
	lastRun  time.Time
	lastErr  error
}

func newPeriodicWorker(name string, interval time.Duration, task func(ctx context.Context) error, logger *zap.Logger) *periodicWorker {
	return &periodicWorker{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Start begins the loop; the first run happens one interval after Start
func (w *periodicWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("%s already running", w.name)
	}
	if w.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", w.name)
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("Worker loop started",
		zap.String("worker_name", w.name),
		zap.Duration("interval", w.interval))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the running task to return
func (w *periodicWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Name returns the worker name for identification
func (w *periodicWorker) Name() string {
	return w.name
}

// Status reports the run counters
func (w *periodicWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		Name:     w.name,
		Running:  w.running,
		Runs:     w.runs,
		Failures: w.failures,
		LastRun:  w.lastRun,
	}
	if w.lastErr != nil {
		st.LastErr = w.lastErr.Error()
	}
	return st
}

func (w *periodicWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce runs the task, turning a panic into a recorded failure so one
// bad run does not end the loop
func (w *periodicWorker) runOnce(ctx context.Context) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = w.task(ctx)
	}()

	w.mu.Lock()
	w.runs++
	w.lastRun = time.Now()
	w.lastErr = err
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Worker run failed",
			zap.String("worker_name", w.name),
			zap.Error(err))
	}
}
