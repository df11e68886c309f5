package workflow

// Step identifies a stage of the job visit
type Step string

const (
	StepArrival    Step = "arrival"
	StepPhotos     Step = "photos"
	StepInspection Step = "inspection"
	StepDiscuss    Step = "discuss"
	StepService    Step = "service"
	StepParts      Step = "parts"
	StepAdditional Step = "additional"
	StepCustom     Step = "custom"
	StepFollowup   Step = "followup"
	StepApproval   Step = "approval"
	StepInvoice    Step = "invoice"
	StepSignature  Step = "signature"
	StepComplete   Step = "complete"
)

// Steps lists every step in canonical forward order
var Steps = []Step{
	StepArrival,
	StepPhotos,
	StepInspection,
	StepDiscuss,
	StepService,
	StepParts,
	StepAdditional,
	StepCustom,
	StepFollowup,
	StepApproval,
	StepInvoice,
	StepSignature,
	StepComplete,
}

var validSteps = func() map[Step]bool {
	m := make(map[Step]bool, len(Steps))
	for _, s := range Steps {
		m[s] = true
	}
	return m
}()

// lateral excursions return to the service step when finished
var lateralSteps = map[Step]bool{
	StepParts:      true,
	StepAdditional: true,
	StepCustom:     true,
	StepFollowup:   true,
}

// IsValid returns true if the step is a known visit step
func (s Step) IsValid() bool {
	return validSteps[s]
}

// IsTerminal returns true if no further work happens after this step
func (s Step) IsTerminal() bool {
	return s == StepComplete
}

// IsLateral returns true for the parts/additional/custom/followup excursions
func (s Step) IsLateral() bool {
	return lateralSteps[s]
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IssueCode is a diagnosis selected during inspection
type IssueCode string

const (
	IssueNone            IssueCode = ""
	IssueCompressor      IssueCode = "compressor"
	IssueRefrigerantLeak IssueCode = "refrigerant_leak"
	IssueCapacitor       IssueCode = "capacitor"
	IssueFanMotor        IssueCode = "fan_motor"
	IssueNoIssue         IssueCode = "no_issue"
)

var validIssues = map[IssueCode]bool{
	IssueCompressor:      true,
	IssueRefrigerantLeak: true,
	IssueCapacitor:       true,
	IssueFanMotor:        true,
	IssueNoIssue:         true,
}

// IsValid returns true if the code belongs to the closed diagnosis set.
// The empty code means nothing is selected yet and is not valid as a selection.
func (c IssueCode) IsValid() bool {
	return validIssues[c]
}

// PhotoCategories are the photos required before inspection, in display order
var PhotoCategories = []string{
	"equipment_overview",
	"serial_plate",
	"problem_area",
	"work_area",
}
