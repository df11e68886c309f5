package workflow

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Machine is the read/dispatch surface handed to the presentation layer
type Machine interface {
	// State returns a snapshot of the current state
	State() State

	// Dispatch applies an action and returns the resulting state
	Dispatch(a Action) State

	// Total returns the derived visit total
	Total() float64
}

// Listener is notified after an action changed the state
type Listener func(prev, next State, a Action)

// Store owns the single State of a visit and serializes every dispatch
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
	now       func() time.Time
	newID     func() string
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the clock used to stamp actions
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides how ledger line ids are generated
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) {
		s.newID = gen
	}
}

// NewStore creates a store holding the given initial state
func NewStore(initial State, opts ...StoreOption) *Store {
	s := &Store{
		state: initial,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a deep copy of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Total returns the derived total of the current state
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ComputeTotal()
}

// Subscribe registers a listener for state changes
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch applies an action and returns the resulting state
func (s *Store) Dispatch(a Action) State {
	next, _ := s.Apply(a)
	return next
}

// Apply applies an action and also reports whether the state changed.
// Listeners run after the lock is released so they may dispatch again.
func (s *Store) Apply(a Action) (State, bool) {
	return s.apply(nil, a)
}

// DispatchWhen applies the action only if cond holds for the current state.
// The check and the reduction happen under the same lock.
func (s *Store) DispatchWhen(cond func(State) bool, a Action) (State, bool) {
	return s.apply(cond, a)
}

func (s *Store) apply(cond func(State) bool, a Action) (State, bool) {
	if a.At.IsZero() {
		a.At = s.now()
	}
	if a.Type == ActionAddItem && a.Item.ID == "" {
		a.Item.ID = s.newID()
	}

	s.mu.Lock()
	prev := s.state
	if cond != nil && !cond(prev) {
		snapshot := prev.Clone()
		s.mu.Unlock()
		return snapshot, false
	}
	next := Reduce(prev, a)
	changed := !reflect.DeepEqual(prev, next)
	if changed {
		s.state = next
	}
	listeners := append([]Listener{}, s.listeners...)
	snapshot := s.state.Clone()
	s.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(prev.Clone(), next.Clone(), a)
		}
	}

	return snapshot, changed
}

var _ Machine = (*Store)(nil)
