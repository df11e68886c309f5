package dispatcher

import (
	"context"

	"github.com/garyjia/fieldjob/internal/domain/event"
)

// Handler processes visit events
type Handler func(ctx context.Context, evt *event.Event) error

// scope decides which event types a binding receives. Narrower scopes
// run first: exact type, then family, then everything.
type scope int

const (
	scopeType scope = iota
	scopeFamily
	scopeAll
)

type binding struct {
	name    string
	scope   scope
	match   string
	handler Handler
}

func (b binding) matches(t event.Type) bool {
	switch b.scope {
	case scopeType:
		return string(t) == b.match
	case scopeFamily:
		return t.Family() == b.match
	default:
		return true
	}
}

func (b binding) pattern() string {
	switch b.scope {
	case scopeFamily:
		return b.match + ".*"
	case scopeAll:
		return "*"
	default:
		return b.match
	}
}

// HandlerInfo describes one binding: the handler name and the event
// pattern it receives ("visit.opened", "job.*" or "*")
type HandlerInfo struct {
	Name    string
	Pattern string
}

// HandlerStats counts deliveries of one handler
type HandlerStats struct {
	Delivered uint64
	Failed    uint64
}
