package workflow

import (
	"context"
	"time"

	"github.com/garyjia/fieldjob/internal/domain/entity"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// VisitEngine owns the open visits, one per job
type VisitEngine interface {
	// Open starts a visit for the job, resuming the persisted one if any
	Open(ctx context.Context, job entity.Job) (Orchestrator, error)

	// Get returns the open visit of a job, resuming it from its snapshot
	// when it was swept. Returns ErrSessionNotFound otherwise.
	Get(ctx context.Context, jobID string) (Orchestrator, error)

	// Close stops the visit and persists its final snapshot
	Close(ctx context.Context, jobID string) error

	// History returns the persisted audit trail of a job's visits
	History(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error)

	// Sweep closes visits idle for longer than the configured expiry
	Sweep(ctx context.Context) int

	// Active returns the number of open visits
	Active() int

	// Shutdown closes every open visit
	Shutdown(ctx context.Context) error
}

// Orchestrator drives a single job visit. Every method is a user intent;
// remote calls are made before the matching action is dispatched and a
// failed call leaves the state unchanged.
type Orchestrator interface {
	ID() string
	JobID() string
	Snapshot() View
	Totals() Totals

	// Dispatch applies a raw action without consulting the route table
	Dispatch(ctx context.Context, a domainwf.Action) View

	CallCustomer() View
	MarkEnRoute(ctx context.Context) (View, error)
	MarkArrived(ctx context.Context) (View, error)
	TogglePhoto(index int) (View, error)
	SetIssue(code domainwf.IssueCode) (View, error)
	SetFollowup(data *domainwf.FollowupData) (View, error)
	SetRescheduleType(t domainwf.RescheduleType) (View, error)
	UpdateReschedule(patch domainwf.ReschedulePatch) View
	ApplyReturnShortcut(shortcut domainwf.ReturnShortcut) (View, error)
	SignCustomer() View
	SignTech() (View, error)
	GoBack(ctx context.Context) View
	Advance(ctx context.Context, target domainwf.Step) (View, error)

	Catalogs(ctx context.Context) (*Catalogs, error)
	ConfirmParts(ctx context.Context, selections []PartSelection) (View, Outcomes, error)
	ConfirmServices(ctx context.Context, selections []ServiceSelection) (View, Outcomes, error)
	AddCustomItem(ctx context.Context, entry CustomEntry) (View, error)

	SubmitApproval(ctx context.Context) (View, error)
	Complete(ctx context.Context, pin string) (View, error)

	Close(ctx context.Context)
}

// View is the read model handed to the presentation layer
type View struct {
	SessionID      string          `json:"session_id"`
	Job            entity.Job      `json:"job"`
	State          domainwf.State  `json:"state"`
	Total          float64         `json:"total"`
	LedgerTotal    float64         `json:"ledger_total"`
	NextSteps      []domainwf.Step `json:"next_steps"`
	CanGoBack      bool            `json:"can_go_back"`
	AllPhotosTaken bool            `json:"all_photos_taken"`
	TimerRunning   bool            `json:"timer_running"`
	InvoicePath    string          `json:"invoice_path,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// Totals splits the price shown to the customer
type Totals struct {
	Base   float64 `json:"base"`
	Ledger float64 `json:"ledger"`
	Total  float64 `json:"total"`
}

// PartSelection picks an inventory item for the job
type PartSelection struct {
	InventoryItemID string `json:"inventory_item_id" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gte=0"`
}

// ServiceSelection picks a provider service for the job
type ServiceSelection struct {
	ProviderOfferedServiceID string `json:"provider_offered_service_id" validate:"required"`
	Quantity                 int    `json:"quantity" validate:"gte=0"`
}

// CustomEntry describes an ad-hoc part or service
type CustomEntry struct {
	Kind        string  `json:"kind" validate:"required,oneof=part service"`
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	Description string  `json:"description"`
}

// Catalogs caches the inventory and provider service lists of a visit
type Catalogs struct {
	Inventory []entity.InventoryItem   `json:"inventory"`
	Services  []entity.ProviderService `json:"services"`
	FetchedAt time.Time                `json:"fetched_at"`
}

// FindInventory looks up an inventory item by id
func (c *Catalogs) FindInventory(id string) (entity.InventoryItem, bool) {
	for _, item := range c.Inventory {
		if item.ID == id {
			return item, true
		}
	}
	return entity.InventoryItem{}, false
}

// FindService looks up a provider service by id
func (c *Catalogs) FindService(id string) (entity.ProviderService, bool) {
	for _, svc := range c.Services {
		if svc.ID == id {
			return svc, true
		}
	}
	return entity.ProviderService{}, false
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
