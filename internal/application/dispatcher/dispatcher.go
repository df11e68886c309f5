// Package dispatcher fans visit events out to the recorder, the NATS
// bridge and any other in-process subscriber.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/garyjia/fieldjob/internal/domain/event"
)

// Dispatcher routes visit events to named handlers
type Dispatcher interface {
	// On binds a handler to the given event types
	On(name string, handler Handler, types ...event.Type)

	// OnFamily binds a handler to every type of a family, e.g. "job"
	// receives job.status_updated and job.completed
	OnFamily(name, family string, handler Handler)

	// OnAll binds a handler to every event
	OnAll(name string, handler Handler)

	// Off removes every binding registered under name
	Off(name string)

	// Dispatch runs the matching handlers in order and waits for them.
	// A failing handler does not stop the others; failures are joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs the matching handlers in the background
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Handlers lists the bindings an event type reaches, in call order
	Handlers(t event.Type) []HandlerInfo

	// Stats returns delivery counters keyed by handler name
	Stats() map[string]HandlerStats

	// Close waits for background deliveries and rejects new events
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type counters struct {
	delivered atomic.Uint64
	failed    atomic.Uint64
}

type eventDispatcher struct {
	mu       sync.RWMutex
	bindings []binding
	stats    map[string]*counters
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		stats: make(map[string]*counters),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) On(name string, handler Handler, types ...event.Type) {
	for _, t := range types {
		d.bind(binding{name: name, scope: scopeType, match: string(t), handler: handler})
	}
}

func (d *eventDispatcher) OnFamily(name, family string, handler Handler) {
	d.bind(binding{name: name, scope: scopeFamily, match: family, handler: handler})
}

func (d *eventDispatcher) OnAll(name string, handler Handler) {
	d.bind(binding{name: name, scope: scopeAll, handler: handler})
}

func (d *eventDispatcher) bind(b binding) {
	d.mu.Lock()
	d.bindings = append(d.bindings, b)
	if _, ok := d.stats[b.name]; !ok {
		d.stats[b.name] = &counters{}
	}
	d.mu.Unlock()

	d.logInfo("Handler registered", "handler_name", b.name, "pattern", b.pattern())
}

func (d *eventDispatcher) Off(name string) {
	d.mu.Lock()
	kept := d.bindings[:0]
	removed := 0
	for _, b := range d.bindings {
		if b.name == name {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	d.bindings = kept
	d.mu.Unlock()

	if removed > 0 {
		d.logInfo("Handler unregistered", "handler_name", name, "bindings", removed)
	}
}

// matching returns the bindings for t, narrowest scope first. The sort is
// stable so registration order holds within a scope.
func (d *eventDispatcher) matching(t event.Type) []binding {
	d.mu.RLock()
	out := make([]binding, 0, len(d.bindings))
	for _, b := range d.bindings {
		if b.matches(t) {
			out = append(out, b)
		}
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].scope < out[j].scope })
	return out
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	var errs []error
	for _, b := range d.matching(evt.Type) {
		if err := d.deliver(ctx, evt, b); err != nil {
			errs = append(errs, fmt.Errorf("handler %s failed: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if evt == nil {
		return
	}
	if d.closed.Load() {
		d.logError("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID)
		return
	}

	for _, b := range d.matching(evt.Type) {
		d.wg.Add(1)
		go func(b binding) {
			defer d.wg.Done()
			_ = d.deliver(ctx, evt, b)
		}(b)
	}
}

func (d *eventDispatcher) Handlers(t event.Type) []HandlerInfo {
	matched := d.matching(t)
	out := make([]HandlerInfo, len(matched))
	for i, b := range matched {
		out[i] = HandlerInfo{Name: b.name, Pattern: b.pattern()}
	}
	return out
}

func (d *eventDispatcher) Stats() map[string]HandlerStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]HandlerStats, len(d.stats))
	for name, c := range d.stats {
		out[name] = HandlerStats{Delivered: c.delivered.Load(), Failed: c.failed.Load()}
	}
	return out
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.wg.Wait()

	var delivered, failed uint64
	for _, s := range d.Stats() {
		delivered += s.Delivered
		failed += s.Failed
	}
	d.logInfo("Dispatcher closed", "delivered", delivered, "failed", failed)
	return nil
}

// deliver runs one handler with panic recovery and updates its counters
func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event, b binding) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}

		d.mu.RLock()
		c := d.stats[b.name]
		d.mu.RUnlock()
		if c != nil {
			c.delivered.Add(1)
			if err != nil {
				c.failed.Add(1)
			}
		}

		if err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"job_id", evt.JobID,
				"handler_name", b.name,
				"error", err)
		}
	}()

	return b.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
