package entity

import "time"

// VisitLogRecord is one accepted action in the audit trail of a visit
type VisitLogRecord struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	SessionID  string    `json:"session_id"`
	EventType  string    `json:"event_type"`
	Action     string    `json:"action"`
	FromStep   string    `json:"from_step"`
	ToStep     string    `json:"to_step"`
	Total      float64   `json:"total"`
	ActionData string    `json:"action_data"`
	Timestamp  time.Time `json:"timestamp"`
}

// VisitSnapshot is the latest serialized state of a visit, used to resume it
type VisitSnapshot struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	Step      string    `json:"step"`
	Total     float64   `json:"total"`
	State     string    `json:"state"`
	Job       string    `json:"job"`
	UpdatedAt time.Time `json:"updated_at"`
}
