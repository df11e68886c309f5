package workflow

import (
	"sync"
	"time"
)

// elapsedTimer calls tick on a fixed interval while running.
// Start and Stop are idempotent; Stop waits for the goroutine to exit.
type elapsedTimer struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newElapsedTimer(interval time.Duration) *elapsedTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &elapsedTimer{interval: interval}
}

// Start launches the ticker unless one is already running
func (t *elapsedTimer) Start(tick func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	return true
}

// Stop cancels the ticker if running
func (t *elapsedTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether a ticker goroutine is active
func (t *elapsedTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
