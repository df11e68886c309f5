package workflow

import "time"

// State is the full progress record of one job visit.
// Values are treated as immutable: Reduce copies any slice it changes.
type State struct {
	Step    Step   `json:"step"`
	History []Step `json:"history"`

	Called      bool       `json:"called"`
	EnRoute     bool       `json:"en_route"`
	Arrived     bool       `json:"arrived"`
	CallTime    *time.Time `json:"call_time,omitempty"`
	ArrivedTime *time.Time `json:"arrived_time,omitempty"`

	Photos []bool    `json:"photos"`
	Issue  IssueCode `json:"issue,omitempty"`

	AdditionalItems Ledger        `json:"additional_items"`
	Followup        *FollowupData `json:"followup,omitempty"`

	RescheduleType RescheduleType `json:"reschedule_type"`
	Reschedule     RescheduleData `json:"reschedule"`

	BasePrice float64 `json:"base_price"`
	Total     float64 `json:"total"`

	CustomerSigned bool `json:"customer_signed"`
	TechConfirmed  bool `json:"tech_confirmed"`

	TimerSeconds int64 `json:"timer_seconds"`
}

// NewState creates the initial state for a visit priced at finalPrice
func NewState(finalPrice float64) State {
	return State{
		Step:            StepArrival,
		History:         []Step{},
		Photos:          make([]bool, len(PhotoCategories)),
		AdditionalItems: Ledger{},
		RescheduleType:  RescheduleNone,
		BasePrice:       finalPrice,
		Total:           finalPrice,
	}
}

// AllPhotosTaken reports whether every required photo is checked
func (s State) AllPhotosTaken() bool {
	for _, taken := range s.Photos {
		if !taken {
			return false
		}
	}
	return true
}

// ComputeTotal derives the total from the base price and the ledger
func (s State) ComputeTotal() float64 {
	return s.BasePrice + s.AdditionalItems.Total()
}

// PreviousStep returns the step GO_BACK would return to
func (s State) PreviousStep() (Step, bool) {
	if len(s.History) == 0 {
		return "", false
	}
	return s.History[len(s.History)-1], true
}

// Clone returns a deep copy safe to hand to other goroutines
func (s State) Clone() State {
	out := s
	out.History = append([]Step{}, s.History...)
	out.Photos = append([]bool{}, s.Photos...)
	out.AdditionalItems = append(Ledger{}, s.AdditionalItems...)
	if s.Followup != nil {
		f := *s.Followup
		out.Followup = &f
	}
	if s.CallTime != nil {
		t := *s.CallTime
		out.CallTime = &t
	}
	if s.ArrivedTime != nil {
		t := *s.ArrivedTime
		out.ArrivedTime = &t
	}
	return out
}
