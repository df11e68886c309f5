package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by every visit event
const (
	KeySessionID = "session_id"
	KeyStep      = "step"
	KeyTotal     = "total"
	KeyState     = "state"
	KeyJob       = "job"
	KeyAction    = "action"
	KeyFromStep  = "from_step"
	KeyToStep    = "to_step"
	KeyItem      = "item"
	KeyResumed   = "resumed"
	KeyStatus    = "status"
)

// Event represents a domain event raised by a job visit
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	JobID         string                 `json:"job_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, jobID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		JobID:         jobID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
// Visits use the session id so every event of one visit shares it.
func NewEventWithCorrelation(eventType Type, jobID string, payload map[string]interface{}, correlationID string) *Event {
	e := NewEvent(eventType, jobID, payload)
	e.CorrelationID = correlationID
	return e
}

// SessionID returns the visit session that raised the event
func (e *Event) SessionID() string {
	return e.GetPayloadString(KeySessionID)
}

// Transition returns the steps before and after the action. Events not
// caused by a dispatched action report the current step for both.
func (e *Event) Transition() (from, to string) {
	from, to = e.GetPayloadString(KeyFromStep), e.GetPayloadString(KeyToStep)
	if from == "" && to == "" {
		step := e.GetPayloadString(KeyStep)
		return step, step
	}
	return from, to
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	switch v := e.Payload[key].(type) {
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}

// GetPayloadFloat retrieves a float64 value from the payload; JSON
// decoded payloads carry every number as float64
func (e *Event) GetPayloadFloat(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
