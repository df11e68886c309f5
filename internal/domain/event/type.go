package event

import "strings"

// Type identifies the type of domain event
type Type string

const (
	TypeVisitOpened           Type = "visit.opened"
	TypeVisitClosed           Type = "visit.closed"
	TypeStepChanged           Type = "visit.step_changed"
	TypeItemAdded             Type = "visit.item_added"
	TypeVisitUpdated          Type = "visit.updated"
	TypeInvoiceRendered       Type = "visit.invoice_rendered"
	TypeJobStatusUpdated      Type = "job.status_updated"
	TypeVerificationRequested Type = "job.verification_requested"
	TypePartsPendingCreated   Type = "job.parts_pending_created"
	TypeWorkshopCreated       Type = "job.workshop_created"
	TypeJobCompleted          Type = "job.completed"
)

// Event families, the part of a type before the dot
const (
	FamilyVisit = "visit"
	FamilyJob   = "job"
)

// Family returns "visit" for visit.opened, "job" for job.completed
func (t Type) Family() string {
	family, _, _ := strings.Cut(string(t), ".")
	return family
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeVisitOpened,
		TypeVisitClosed,
		TypeStepChanged,
		TypeItemAdded,
		TypeVisitUpdated,
		TypeInvoiceRendered,
		TypeJobStatusUpdated,
		TypeVerificationRequested,
		TypePartsPendingCreated,
		TypeWorkshopCreated,
		TypeJobCompleted:
		return true
	default:
		return false
	}
}
