package workflow

import "time"

// ActionType names an intent the reducer understands
type ActionType string

const (
	ActionSetStep           ActionType = "SET_STEP"
	ActionGoBack            ActionType = "GO_BACK"
	ActionCallCustomer      ActionType = "CALL_CUSTOMER"
	ActionEnRoute           ActionType = "EN_ROUTE"
	ActionArrived           ActionType = "ARRIVED"
	ActionTogglePhoto       ActionType = "TOGGLE_PHOTO"
	ActionSetIssue          ActionType = "SET_ISSUE"
	ActionAddItem           ActionType = "ADD_ITEM"
	ActionSetFollowup       ActionType = "SET_FOLLOWUP"
	ActionSetRescheduleType ActionType = "SET_RESCHEDULE_TYPE"
	ActionUpdateReschedule  ActionType = "UPDATE_RESCHEDULE"
	ActionSignCustomer      ActionType = "SIGN_CUSTOMER"
	ActionSignTech          ActionType = "SIGN_TECH"
	ActionTick              ActionType = "TICK"
)

// String returns the string representation of the action type
func (t ActionType) String() string {
	return string(t)
}

// Action is a single intent with its payload. Only the payload field
// matching Type is read.
type Action struct {
	Type ActionType `json:"type"`

	Step           Step            `json:"step,omitempty"`
	PhotoIndex     int             `json:"photo_index,omitempty"`
	Issue          IssueCode       `json:"issue,omitempty"`
	Item           Item            `json:"item,omitempty"`
	Followup       *FollowupData   `json:"followup,omitempty"`
	RescheduleType RescheduleType  `json:"reschedule_type,omitempty"`
	Patch          ReschedulePatch `json:"patch,omitempty"`

	// At is the moment the action happened; the Store fills it when zero
	At time.Time `json:"at"`
}

// SetStep moves the visit to step, pushing the current one on the history
func SetStep(step Step) Action { return Action{Type: ActionSetStep, Step: step} }

// GoBack returns to the most recent step in the history
func GoBack() Action { return Action{Type: ActionGoBack} }

// CallCustomer records that the customer was called
func CallCustomer() Action { return Action{Type: ActionCallCustomer} }

// EnRoute marks the technician on the way; requires a prior call
func EnRoute() Action { return Action{Type: ActionEnRoute} }

// Arrived marks the technician on site; requires en route
func Arrived() Action { return Action{Type: ActionArrived} }

// TogglePhoto flips the photo checkmark at index
func TogglePhoto(index int) Action { return Action{Type: ActionTogglePhoto, PhotoIndex: index} }

// SetIssue records the diagnosed issue category
func SetIssue(code IssueCode) Action { return Action{Type: ActionSetIssue, Issue: code} }

// AddItem appends a billable line to the ledger
func AddItem(item Item) Action { return Action{Type: ActionAddItem, Item: item} }

// SetFollowup stores or clears (nil) the follow-up appointment
func SetFollowup(data *FollowupData) Action { return Action{Type: ActionSetFollowup, Followup: data} }

// SetRescheduleType selects the completion branch
func SetRescheduleType(t RescheduleType) Action {
	return Action{Type: ActionSetRescheduleType, RescheduleType: t}
}

// UpdateReschedule merges a partial update into the reschedule data
func UpdateReschedule(p ReschedulePatch) Action {
	return Action{Type: ActionUpdateReschedule, Patch: p}
}

// SignCustomer records the customer signature
func SignCustomer() Action { return Action{Type: ActionSignCustomer} }

// SignTech records the technician confirmation; requires the customer signature
func SignTech() Action { return Action{Type: ActionSignTech} }

// Tick adds one second to the service timer
func Tick() Action { return Action{Type: ActionTick} }
