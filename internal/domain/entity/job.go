package entity

import "time"

// Job status values accepted by the remote job service
const (
	JobStatusScheduled = "scheduled"
	JobStatusEnRoute   = "en_route"
	JobStatusArrived   = "arrived"
	JobStatusCompleted = "completed"
)

// Job is the assigned service job a visit is performed for
type Job struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customer_name"`
	Address      string     `json:"address"`
	Phone        string     `json:"phone,omitempty"`
	Description  string     `json:"description,omitempty"`
	FinalPrice   float64    `json:"final_price"`
	Status       string     `json:"status,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

// StatusUpdate is the body of a job status mutation
type StatusUpdate struct {
	Status string `json:"status"`
	PIN    string `json:"pin,omitempty"`
	Note   string `json:"note,omitempty"`
}

// StatusResult is the job service answer to a status mutation
type StatusResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
