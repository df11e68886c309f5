package port

import (
	"context"

	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	"github.com/garyjia/fieldjob/internal/domain/workflow"
)

// JobAPI defines the remote job service operations a visit needs
type JobAPI interface {
	UpdateStatus(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error)
	ListInventory(ctx context.Context) ([]entity.InventoryItem, error)
	ListProviderServices(ctx context.Context) ([]entity.ProviderService, error)
	AddParts(ctx context.Context, jobID string, parts []entity.PartLine) error
	AddService(ctx context.Context, jobID string, line entity.ServiceLine) error
	AddCustomItem(ctx context.Context, jobID string, item entity.CustomItem) (*entity.CustomItem, error)
	RequestVerification(ctx context.Context, jobID string) error
	CreatePartsPending(ctx context.Context, jobID string, req entity.PartsPendingRequest) error
	CreateWorkshop(ctx context.Context, jobID string, req entity.WorkshopRequest) error
}

// InvoiceRenderer produces the customer invoice document of a visit
type InvoiceRenderer interface {
	Render(ctx context.Context, job entity.Job, state workflow.State) (string, error)
}

// EventPublisher forwards domain events to an external message bus
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}
