package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// mockJobAPI implements port.JobAPI with overridable functions
type mockJobAPI struct {
	mu    sync.Mutex
	calls []string

	updateStatusFunc        func(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error)
	listInventoryFunc       func(ctx context.Context) ([]entity.InventoryItem, error)
	listServicesFunc        func(ctx context.Context) ([]entity.ProviderService, error)
	addPartsFunc            func(ctx context.Context, jobID string, parts []entity.PartLine) error
	addServiceFunc          func(ctx context.Context, jobID string, line entity.ServiceLine) error
	addCustomItemFunc       func(ctx context.Context, jobID string, item entity.CustomItem) (*entity.CustomItem, error)
	requestVerificationFunc func(ctx context.Context, jobID string) error
	createPartsPendingFunc  func(ctx context.Context, jobID string, req entity.PartsPendingRequest) error
	createWorkshopFunc      func(ctx context.Context, jobID string, req entity.WorkshopRequest) error
}

func (m *mockJobAPI) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockJobAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

func (m *mockJobAPI) UpdateStatus(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error) {
	m.record("status:" + update.Status)
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, jobID, update)
	}
	return &entity.StatusResult{Success: true}, nil
}

func (m *mockJobAPI) ListInventory(ctx context.Context) ([]entity.InventoryItem, error) {
	m.record("inventory")
	if m.listInventoryFunc != nil {
		return m.listInventoryFunc(ctx)
	}
	return []entity.InventoryItem{
		{ID: "inv-1", Name: "Compressor", Price: 500, Quantity: 3},
		{ID: "inv-2", Name: "Capacitor", Price: 200, Quantity: 10},
	}, nil
}

func (m *mockJobAPI) ListProviderServices(ctx context.Context) ([]entity.ProviderService, error) {
	m.record("services")
	if m.listServicesFunc != nil {
		return m.listServicesFunc(ctx)
	}
	return []entity.ProviderService{
		{ID: "svc-1", Name: "Refrigerant recharge", Price: 150},
	}, nil
}

func (m *mockJobAPI) AddParts(ctx context.Context, jobID string, parts []entity.PartLine) error {
	m.record("parts:" + parts[0].InventoryItemID)
	if m.addPartsFunc != nil {
		return m.addPartsFunc(ctx, jobID, parts)
	}
	return nil
}

func (m *mockJobAPI) AddService(ctx context.Context, jobID string, line entity.ServiceLine) error {
	m.record("service:" + line.ProviderOfferedServiceID)
	if m.addServiceFunc != nil {
		return m.addServiceFunc(ctx, jobID, line)
	}
	return nil
}

func (m *mockJobAPI) AddCustomItem(ctx context.Context, jobID string, item entity.CustomItem) (*entity.CustomItem, error) {
	m.record("custom:" + item.Name)
	if m.addCustomItemFunc != nil {
		return m.addCustomItemFunc(ctx, jobID, item)
	}
	item.ID = "custom-1"
	return &item, nil
}

func (m *mockJobAPI) RequestVerification(ctx context.Context, jobID string) error {
	m.record("verification")
	if m.requestVerificationFunc != nil {
		return m.requestVerificationFunc(ctx, jobID)
	}
	return nil
}

func (m *mockJobAPI) CreatePartsPending(ctx context.Context, jobID string, req entity.PartsPendingRequest) error {
	m.record("parts-pending")
	if m.createPartsPendingFunc != nil {
		return m.createPartsPendingFunc(ctx, jobID, req)
	}
	return nil
}

func (m *mockJobAPI) CreateWorkshop(ctx context.Context, jobID string, req entity.WorkshopRequest) error {
	m.record("workshop")
	if m.createWorkshopFunc != nil {
		return m.createWorkshopFunc(ctx, jobID, req)
	}
	return nil
}

// mockDispatcher records dispatched events
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) On(name string, handler dispatcher.Handler, types ...event.Type) {}

func (m *mockDispatcher) OnFamily(name, family string, handler dispatcher.Handler) {}

func (m *mockDispatcher) OnAll(name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Off(name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = m.Dispatch(ctx, evt)
}

func (m *mockDispatcher) Handlers(t event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Stats() map[string]dispatcher.HandlerStats { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) Types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// mockRenderer implements port.InvoiceRenderer
type mockRenderer struct {
	renderFunc func(ctx context.Context, job entity.Job, state domainwf.State) (string, error)
	rendered   int
}

func (m *mockRenderer) Render(ctx context.Context, job entity.Job, state domainwf.State) (string, error) {
	m.rendered++
	if m.renderFunc != nil {
		return m.renderFunc(ctx, job, state)
	}
	return "/tmp/invoice-" + job.ID + ".xlsx", nil
}

// mockSnapshotRepo implements port.SnapshotRepository in memory
type mockSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]*entity.VisitSnapshot
	getErr    error
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{snapshots: make(map[string]*entity.VisitSnapshot)}
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snapshot *entity.VisitSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snapshot
	m.snapshots[snapshot.JobID] = &cp
	return nil
}

func (m *mockSnapshotRepo) GetByJobID(ctx context.Context, jobID string) (*entity.VisitSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	snap, ok := m.snapshots[jobID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (m *mockSnapshotRepo) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, jobID)
	return nil
}

// mockVisitLogRepo implements port.VisitLogRepository in memory
type mockVisitLogRepo struct {
	mu        sync.Mutex
	records   []*entity.VisitLogRecord
	createErr error
}

func (m *mockVisitLogRepo) Create(ctx context.Context, record *entity.VisitLogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockVisitLogRepo) GetByJobID(ctx context.Context, jobID string) ([]*entity.VisitLogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.VisitLogRecord
	for _, r := range m.records {
		if r.JobID == jobID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockVisitLogRepo) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	return 0, nil
}

type mockTxManager struct {
	commitErr error
	calls     int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return m.commitErr
}

// capturingDispatcher keeps the wildcard handler it was given
type capturingDispatcher struct {
	mockDispatcher
	allName string
	all     dispatcher.Handler
}

func (c *capturingDispatcher) OnAll(name string, handler dispatcher.Handler) {
	c.allName, c.all = name, handler
}

// recordingDispatcher hands every event to handle synchronously
type recordingDispatcher struct {
	mockDispatcher
	handle dispatcher.Handler
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	_ = r.mockDispatcher.Dispatch(ctx, evt)
	return r.handle(ctx, evt)
}
