package workflow

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RescheduleType selects one of the exceptional completion paths
type RescheduleType string

const (
	RescheduleNone             RescheduleType = "none"
	ReschedulePartsPending     RescheduleType = "parts_pending"
	RescheduleWorkshopRequired RescheduleType = "workshop_required"
)

// IsValid returns true for the three known reschedule types
func (t RescheduleType) IsValid() bool {
	switch t {
	case RescheduleNone, ReschedulePartsPending, RescheduleWorkshopRequired:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar date format exchanged with the job service
const DateLayout = "2006-01-02"

// RescheduleData holds the fields either branch may need. It is kept when
// the branch type changes. PartName is a comma separated list for parts
// pending and the item description for the workshop.
type RescheduleData struct {
	PartName                string `json:"part_name,omitempty"`
	RepairRequired          string `json:"repair_required,omitempty"`
	EstimatedCost           string `json:"estimated_cost,omitempty"`
	EstimatedCompletionTime string `json:"estimated_completion_time,omitempty"`
	EstimatedAvailability   string `json:"estimated_availability,omitempty"`
	ExpectedReturnDate      string `json:"expected_return_date,omitempty"`
	ReturnDateLabel         string `json:"return_date_label,omitempty"`
	Notes                   string `json:"notes,omitempty"`
}

// ReschedulePatch is a partial update; nil fields are left untouched.
// The return date label has no public field: only ShortcutPatch sets it,
// together with the date it names.
type ReschedulePatch struct {
	PartName                *string `json:"part_name,omitempty"`
	RepairRequired          *string `json:"repair_required,omitempty"`
	EstimatedCost           *string `json:"estimated_cost,omitempty"`
	EstimatedCompletionTime *string `json:"estimated_completion_time,omitempty"`
	EstimatedAvailability   *string `json:"estimated_availability,omitempty"`
	ExpectedReturnDate      *string `json:"expected_return_date,omitempty"`
	Notes                   *string `json:"notes,omitempty"`

	label string
}

// Label returns the shortcut label carried by the patch, if any
func (p ReschedulePatch) Label() string {
	return p.label
}

// Merge applies the patch field by field.
// Any new date replaces the label with the patch's own, which is empty
// unless the patch came from a shortcut.
func (d RescheduleData) Merge(p ReschedulePatch) RescheduleData {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&d.PartName, p.PartName)
	set(&d.RepairRequired, p.RepairRequired)
	set(&d.EstimatedCost, p.EstimatedCost)
	set(&d.EstimatedCompletionTime, p.EstimatedCompletionTime)
	set(&d.EstimatedAvailability, p.EstimatedAvailability)
	set(&d.Notes, p.Notes)
	if p.ExpectedReturnDate != nil {
		d.ExpectedReturnDate = *p.ExpectedReturnDate
		d.ReturnDateLabel = p.label
	}
	return d
}

// RequiredParts splits PartName into the trimmed, non-empty part names
func (d RescheduleData) RequiredParts() []string {
	parts := []string{}
	for _, name := range strings.Split(d.PartName, ",") {
		if name = strings.TrimSpace(name); name != "" {
			parts = append(parts, name)
		}
	}
	return parts
}

// FollowupData describes a same-visit follow-up appointment
type FollowupData struct {
	Reason     string `json:"reason" validate:"required"`
	Part       string `json:"part,omitempty"`
	Time       string `json:"time" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	LoanerUnit bool   `json:"loaner_unit"`
}

// ReturnShortcut is one of the canned expected-return choices
type ReturnShortcut string

const (
	ShortcutToday      ReturnShortcut = "Today"
	ShortcutTomorrow   ReturnShortcut = "Tomorrow"
	ShortcutWithinWeek ReturnShortcut = "Within Week"
)

var shortcutOffsets = map[ReturnShortcut]int{
	ShortcutToday:      0,
	ShortcutTomorrow:   1,
	ShortcutWithinWeek: 7,
}

// ShortcutPatch builds the patch for a return-date shortcut relative to now.
// Date and label are always set together.
func ShortcutPatch(s ReturnShortcut, now time.Time) (ReschedulePatch, bool) {
	offset, ok := shortcutOffsets[s]
	if !ok {
		return ReschedulePatch{}, false
	}
	date := now.AddDate(0, 0, offset).Format(DateLayout)
	return ReschedulePatch{ExpectedReturnDate: &date, label: string(s)}, true
}

type partsPendingInput struct {
	PartName           string `validate:"required"`
	ExpectedReturnDate string `validate:"required,datetime=2006-01-02"`
}

type workshopInput struct {
	PartName           string `validate:"required"`
	ExpectedReturnDate string `validate:"required,datetime=2006-01-02"`
	RepairRequired     string `validate:"required"`
	EstimatedCost      string `validate:"required,numeric"`
}

var validate = newValidator()

// newValidator reports fields by their json name when they have one
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator exposes the shared validator instance for request DTOs
func Validator() *validator.Validate {
	return validate
}

// ValidateSubmission checks the fields the active branch needs before any
// remote call is made. RescheduleNone always passes.
func ValidateSubmission(t RescheduleType, d RescheduleData) error {
	var input interface{}
	switch t {
	case RescheduleNone:
		return nil
	case ReschedulePartsPending:
		input = partsPendingInput{
			PartName:           strings.Join(d.RequiredParts(), ","),
			ExpectedReturnDate: strings.TrimSpace(d.ExpectedReturnDate),
		}
	case RescheduleWorkshopRequired:
		input = workshopInput{
			PartName:           strings.TrimSpace(d.PartName),
			ExpectedReturnDate: strings.TrimSpace(d.ExpectedReturnDate),
			RepairRequired:     strings.TrimSpace(d.RepairRequired),
			EstimatedCost:      strings.TrimSpace(d.EstimatedCost),
		}
	default:
		return NewValidationError("reschedule_type")
	}
	return ValidateStruct(input)
}

// ValidateStruct runs struct tags and converts failures into a ValidationError
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, toSnake(fe.Field()))
	}
	return NewValidationError(fields...)
}

// EstimatedCostValue parses the estimated cost; callers validate first
func (d RescheduleData) EstimatedCostValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(d.EstimatedCost), 64)
	if err != nil {
		return 0
	}
	return v
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
