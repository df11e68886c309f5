// Package worker runs the periodic housekeeping of the visit service:
// sweeping idle sessions and purging old visit log rows.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Status describes one managed worker
type Status struct {
	Name     string
	Running  bool
	Runs     uint64
	Failures uint64
	LastRun  time.Time
	LastErr  string
}

// reporter is implemented by workers that track their runs
type reporter interface {
	Status() Status
}

// WorkerManager starts workers in registration order and stops the ones
// that started in reverse
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	workers []Worker
	started map[string]bool
	order   []Worker
	running bool
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{
		logger:  logger,
		started: make(map[string]bool),
	}
}

// Register adds a worker to be managed
func (m *WorkerManager) Register(worker Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, worker)
	m.logger.Info("Worker registered",
		zap.String("worker_name", worker.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker. One that fails to start is
// logged and left out; the rest keep running.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}
	m.running = true
	m.order = nil

	for _, worker := range m.workers {
		if err := worker.Start(ctx); err != nil {
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", worker.Name()),
				zap.Error(err))
			continue
		}
		m.started[worker.Name()] = true
		m.order = append(m.order, worker)
	}

	m.logger.Info("Workers started",
		zap.Int("started", len(m.order)),
		zap.Int("registered", len(m.workers)))
	return nil
}

// StopAll stops the started workers in reverse order
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	var failed []string
	for i := len(m.order) - 1; i >= 0; i-- {
		worker := m.order[i]
		delete(m.started, worker.Name())
		if err := worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", worker.Name()),
				zap.Error(err))
			failed = append(failed, worker.Name())
		}
	}
	m.order = nil

	if len(failed) > 0 {
		return fmt.Errorf("failed to stop workers: %v", failed)
	}
	m.logger.Info("All workers stopped")
	return nil
}

// Count returns the number of registered workers
func (m *WorkerManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// IsRunning reports whether StartAll ran and StopAll has not
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Statuses returns one entry per registered worker in registration order
func (m *WorkerManager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.workers))
	for _, w := range m.workers {
		st := Status{Name: w.Name()}
		if r, ok := w.(reporter); ok {
			st = r.Status()
		}
		st.Running = m.started[w.Name()]
		out = append(out, st)
	}
	return out
}
