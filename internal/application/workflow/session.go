package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// Session is the Orchestrator of one job visit
type Session struct {
	id       string
	job      entity.Job
	store    *domainwf.Store
	routes   *domainwf.Routes
	api      port.JobAPI
	renderer port.InvoiceRenderer
	events   dispatcher.Dispatcher
	logger   Logger
	now      func() time.Time

	tickInterval time.Duration
	timer        *elapsedTimer

	// opMu serializes intents; the store serializes dispatches
	opMu sync.Mutex

	mu          sync.RWMutex
	catalogs    *Catalogs
	catalogErr  error
	invoicePath string
	invoiceErr  error
	closed      bool
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionID sets the session id, mainly for resumed visits and tests
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithEvents sets the dispatcher visit events are published to
func WithEvents(d dispatcher.Dispatcher) SessionOption {
	return func(s *Session) {
		s.events = d
	}
}

// WithRenderer sets the invoice renderer used when the visit enters invoice
func WithRenderer(r port.InvoiceRenderer) SessionOption {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithSessionLogger sets the session logger
func WithSessionLogger(l Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithTimerInterval sets how often the service timer ticks
func WithTimerInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.tickInterval = d
	}
}

// WithSessionClock overrides the clock used for timestamps and shortcuts
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates the orchestrator for a visit starting from initial.
// A visit resumed in the service step restarts its timer.
func NewSession(job entity.Job, initial domainwf.State, api port.JobAPI, opts ...SessionOption) *Session {
	s := &Session{
		id:           uuid.NewString(),
		job:          job,
		routes:       BuildVisitRoutes(),
		api:          api,
		logger:       nopLogger{},
		now:          time.Now,
		tickInterval: time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.store = domainwf.NewStore(initial, domainwf.WithClock(s.now))
	s.store.Subscribe(s.publishChange)
	s.timer = newElapsedTimer(s.tickInterval)

	if initial.Step == domainwf.StepService {
		s.timer.Start(s.tick)
	}

	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// JobID returns the id of the job being visited
func (s *Session) JobID() string {
	return s.job.ID
}

// Snapshot returns the current view without changing anything
func (s *Session) Snapshot() View {
	return s.view(s.store.State())
}

// Totals returns the base price, the ledger sum and their total
func (s *Session) Totals() Totals {
	st := s.store.State()
	ledger := st.AdditionalItems.Total()
	return Totals{Base: st.BasePrice, Ledger: ledger, Total: st.BasePrice + ledger}
}

// Dispatch applies an action as is. Guards still apply and step changes
// keep their timer, catalog and invoice side effects.
func (s *Session) Dispatch(ctx context.Context, a domainwf.Action) View {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.move(ctx, a)
}

// CallCustomer records the courtesy call
func (s *Session) CallCustomer() View {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.view(s.store.Dispatch(domainwf.CallCustomer()))
}

// MarkEnRoute reports the technician on the way. The flag is only set
// after the job service accepted the status.
func (s *Session) MarkEnRoute(ctx context.Context) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if !st.Called {
		return s.view(st), domainwf.NewValidationError("called")
	}
	if st.EnRoute {
		return s.view(st), nil
	}

	if err := s.updateStatus(ctx, entity.JobStatusEnRoute, ""); err != nil {
		return s.view(st), err
	}

	return s.view(s.store.Dispatch(domainwf.EnRoute())), nil
}

// MarkArrived reports the technician on site
func (s *Session) MarkArrived(ctx context.Context) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if !st.EnRoute {
		return s.view(st), domainwf.NewValidationError("en_route")
	}
	if st.Arrived {
		return s.view(st), nil
	}

	if err := s.updateStatus(ctx, entity.JobStatusArrived, ""); err != nil {
		return s.view(st), err
	}

	return s.view(s.store.Dispatch(domainwf.Arrived())), nil
}

// TogglePhoto flips one of the required photo checkmarks
func (s *Session) TogglePhoto(index int) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if index < 0 || index >= len(domainwf.PhotoCategories) {
		return s.view(s.store.State()), domainwf.NewValidationError("photo_index")
	}

	return s.view(s.store.Dispatch(domainwf.TogglePhoto(index))), nil
}

// SetIssue records the diagnosis
func (s *Session) SetIssue(code domainwf.IssueCode) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !code.IsValid() {
		return s.view(s.store.State()), domainwf.NewValidationError("issue")
	}

	return s.view(s.store.Dispatch(domainwf.SetIssue(code))), nil
}

// SetFollowup stores the follow-up appointment; nil clears it
func (s *Session) SetFollowup(data *domainwf.FollowupData) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if data != nil {
		if err := domainwf.ValidateStruct(*data); err != nil {
			return s.view(s.store.State()), err
		}
	}

	return s.view(s.store.Dispatch(domainwf.SetFollowup(data))), nil
}

// SetRescheduleType picks the completion branch
func (s *Session) SetRescheduleType(t domainwf.RescheduleType) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !t.IsValid() {
		return s.view(s.store.State()), domainwf.NewValidationError("reschedule_type")
	}

	return s.view(s.store.Dispatch(domainwf.SetRescheduleType(t))), nil
}

// UpdateReschedule merges a partial update into the reschedule data
func (s *Session) UpdateReschedule(patch domainwf.ReschedulePatch) View {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.view(s.store.Dispatch(domainwf.UpdateReschedule(patch)))
}

// ApplyReturnShortcut sets the expected return date from a canned choice
func (s *Session) ApplyReturnShortcut(shortcut domainwf.ReturnShortcut) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	patch, ok := domainwf.ShortcutPatch(shortcut, s.now())
	if !ok {
		return s.view(s.store.State()), domainwf.NewValidationError("shortcut")
	}

	return s.view(s.store.Dispatch(domainwf.UpdateReschedule(patch))), nil
}

// SignCustomer records the customer signature
func (s *Session) SignCustomer() View {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.view(s.store.Dispatch(domainwf.SignCustomer()))
}

// SignTech records the technician confirmation; the customer signs first
func (s *Session) SignTech() (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if !st.CustomerSigned {
		return s.view(st), domainwf.NewValidationError("customer_signature")
	}

	return s.view(s.store.Dispatch(domainwf.SignTech())), nil
}

// GoBack returns to the previous step; a no-op on an empty history
func (s *Session) GoBack(ctx context.Context) View {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.move(ctx, domainwf.GoBack())
}

// Advance moves forward when the route table enables the target
func (s *Session) Advance(ctx context.Context, target domainwf.Step) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if err := s.routes.Check(st, target); err != nil {
		return s.view(st), err
	}

	return s.move(ctx, domainwf.SetStep(target)), nil
}

// Catalogs returns the cached catalogs, fetching them on first use
func (s *Session) Catalogs(ctx context.Context) (*Catalogs, error) {
	s.mu.RLock()
	cached := s.catalogs
	s.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}
	return s.refreshCatalogs(ctx)
}

// ConfirmParts adds each selected inventory item with its own remote call.
// Successful entries land in the ledger; any success returns a lateral
// excursion to service.
func (s *Session) ConfirmParts(ctx context.Context, selections []PartSelection) (View, Outcomes, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if len(selections) == 0 {
		return s.view(s.store.State()), nil, domainwf.NewValidationError("parts")
	}

	cat, err := s.Catalogs(ctx)
	if err != nil {
		return s.view(s.store.State()), nil, err
	}

	outcomes := make(Outcomes, 0, len(selections))
	for i, sel := range selections {
		if err := domainwf.ValidateStruct(sel); err != nil {
			outcomes = append(outcomes, failedOutcome(i, sel.InventoryItemID, "", err))
			continue
		}

		item, ok := cat.FindInventory(sel.InventoryItemID)
		if !ok {
			outcomes = append(outcomes, failedOutcome(i, sel.InventoryItemID, "",
				fmt.Errorf("unknown inventory item %s", sel.InventoryItemID)))
			continue
		}

		qty := atLeastOne(sel.Quantity)
		line := entity.PartLine{InventoryItemID: item.ID, Quantity: qty}
		if err := s.api.AddParts(ctx, s.job.ID, []entity.PartLine{line}); err != nil {
			s.logger.Error("Failed to add part to job",
				"job_id", s.job.ID,
				"inventory_item_id", item.ID,
				"error", err,
			)
			outcomes = append(outcomes, failedOutcome(i, item.ID, item.Name, err))
			continue
		}

		s.store.Dispatch(domainwf.AddItem(domainwf.Item{
			CatalogID: item.ID,
			Kind:      domainwf.ItemKindPart,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  qty,
		}))
		outcomes = append(outcomes, okOutcome(i, item.ID, item.Name))
	}

	return s.returnToService(ctx, outcomes), outcomes, outcomes.Err("add parts")
}

// ConfirmServices adds each selected provider service with its own remote call
func (s *Session) ConfirmServices(ctx context.Context, selections []ServiceSelection) (View, Outcomes, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if len(selections) == 0 {
		return s.view(s.store.State()), nil, domainwf.NewValidationError("services")
	}

	cat, err := s.Catalogs(ctx)
	if err != nil {
		return s.view(s.store.State()), nil, err
	}

	outcomes := make(Outcomes, 0, len(selections))
	for i, sel := range selections {
		if err := domainwf.ValidateStruct(sel); err != nil {
			outcomes = append(outcomes, failedOutcome(i, sel.ProviderOfferedServiceID, "", err))
			continue
		}

		svc, ok := cat.FindService(sel.ProviderOfferedServiceID)
		if !ok {
			outcomes = append(outcomes, failedOutcome(i, sel.ProviderOfferedServiceID, "",
				fmt.Errorf("unknown provider service %s", sel.ProviderOfferedServiceID)))
			continue
		}

		qty := atLeastOne(sel.Quantity)
		line := entity.ServiceLine{ProviderOfferedServiceID: svc.ID, Quantity: qty}
		if err := s.api.AddService(ctx, s.job.ID, line); err != nil {
			s.logger.Error("Failed to add service to job",
				"job_id", s.job.ID,
				"service_id", svc.ID,
				"error", err,
			)
			outcomes = append(outcomes, failedOutcome(i, svc.ID, svc.Name, err))
			continue
		}

		s.store.Dispatch(domainwf.AddItem(domainwf.Item{
			CatalogID: svc.ID,
			Kind:      domainwf.ItemKindService,
			Name:      svc.Name,
			UnitPrice: svc.Price,
			Quantity:  qty,
		}))
		outcomes = append(outcomes, okOutcome(i, svc.ID, svc.Name))
	}

	return s.returnToService(ctx, outcomes), outcomes, outcomes.Err("add services")
}

// AddCustomItem creates an ad-hoc line on the job and records the echo
func (s *Session) AddCustomItem(ctx context.Context, entry CustomEntry) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	entry.Name = strings.TrimSpace(entry.Name)
	if err := domainwf.ValidateStruct(entry); err != nil {
		return s.view(s.store.State()), err
	}

	req := entity.CustomItem{
		Kind:        entry.Kind,
		Name:        entry.Name,
		Price:       entry.Price,
		Quantity:    atLeastOne(entry.Quantity),
		Description: entry.Description,
	}

	created, err := s.api.AddCustomItem(ctx, s.job.ID, req)
	if err != nil {
		s.logger.Error("Failed to create custom item",
			"job_id", s.job.ID,
			"name", entry.Name,
			"error", err,
		)
		return s.view(s.store.State()), newRemoteError("add custom item", err)
	}

	echo := req
	if created != nil {
		echo = *created
	}

	kind := domainwf.ItemKindCustomPart
	if echo.Kind == entity.CustomKindService {
		kind = domainwf.ItemKindCustomService
	}

	s.store.Dispatch(domainwf.AddItem(domainwf.Item{
		CatalogID: echo.ID,
		Kind:      kind,
		Name:      echo.Name,
		UnitPrice: echo.Price,
		Quantity:  atLeastOne(echo.Quantity),
	}))

	return s.returnToService(ctx, Outcomes{okOutcome(0, echo.ID, echo.Name)}), nil
}

// SubmitApproval performs the remote call of the selected branch.
// It is accepted from service or approval. Without a reschedule the visit
// asks for verification and moves to invoice; the reschedule branches
// validate their data first and finish the visit.
func (s *Session) SubmitApproval(ctx context.Context) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if st.Step.IsTerminal() {
		return s.view(st), fmt.Errorf("%w: visit already complete", domainwf.ErrRouteNotPermitted)
	}
	if st.Step != domainwf.StepService && st.Step != domainwf.StepApproval {
		return s.view(st), fmt.Errorf("%w: approval is submitted from %s or %s, not %s",
			domainwf.ErrRouteNotPermitted, domainwf.StepService, domainwf.StepApproval, st.Step)
	}

	if err := domainwf.ValidateSubmission(st.RescheduleType, st.Reschedule); err != nil {
		return s.view(st), err
	}

	d := st.Reschedule
	switch st.RescheduleType {
	case domainwf.ReschedulePartsPending:
		req := entity.PartsPendingRequest{
			RequiredParts:         d.RequiredParts(),
			EstimatedAvailability: strings.TrimSpace(d.EstimatedAvailability),
			ExpectedReturnDate:    strings.TrimSpace(d.ExpectedReturnDate),
			Notes:                 d.Notes,
		}
		if err := s.api.CreatePartsPending(ctx, s.job.ID, req); err != nil {
			s.logger.Error("Failed to create parts pending", "job_id", s.job.ID, "error", err)
			return s.view(st), newRemoteError("create parts pending", err)
		}
		s.emit(ctx, event.TypePartsPendingCreated, map[string]interface{}{
			"required_parts":       req.RequiredParts,
			"expected_return_date": req.ExpectedReturnDate,
		})
		return s.move(ctx, domainwf.SetStep(domainwf.StepComplete)), nil

	case domainwf.RescheduleWorkshopRequired:
		req := entity.WorkshopRequest{
			ItemDescription:         strings.TrimSpace(d.PartName),
			RepairRequired:          strings.TrimSpace(d.RepairRequired),
			EstimatedCost:           d.EstimatedCostValue(),
			EstimatedCompletionTime: d.EstimatedCompletionTime,
			ExpectedReturnDate:      strings.TrimSpace(d.ExpectedReturnDate),
			Notes:                   d.Notes,
		}
		if err := s.api.CreateWorkshop(ctx, s.job.ID, req); err != nil {
			s.logger.Error("Failed to create workshop job", "job_id", s.job.ID, "error", err)
			return s.view(st), newRemoteError("create workshop", err)
		}
		s.emit(ctx, event.TypeWorkshopCreated, map[string]interface{}{
			"item_description":     req.ItemDescription,
			"estimated_cost":       req.EstimatedCost,
			"expected_return_date": req.ExpectedReturnDate,
		})
		return s.move(ctx, domainwf.SetStep(domainwf.StepComplete)), nil

	default:
		if err := s.api.RequestVerification(ctx, s.job.ID); err != nil {
			s.logger.Error("Failed to request verification", "job_id", s.job.ID, "error", err)
			return s.view(st), newRemoteError("request verification", err)
		}
		s.emit(ctx, event.TypeVerificationRequested, nil)
		return s.move(ctx, domainwf.SetStep(domainwf.StepInvoice)), nil
	}
}

// Complete verifies the customer PIN with the job service and finishes
// the visit. Only the signature step can complete.
func (s *Session) Complete(ctx context.Context, pin string) (View, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.store.State()
	if st.Step.IsTerminal() {
		return s.view(st), nil
	}
	if st.Step != domainwf.StepSignature {
		return s.view(st), fmt.Errorf("%w: completion needs the %s step, visit is at %s",
			domainwf.ErrRouteNotPermitted, domainwf.StepSignature, st.Step)
	}

	pin = strings.TrimSpace(pin)
	var missing []string
	if !st.TechConfirmed {
		missing = append(missing, "tech_signature")
	}
	if pin == "" {
		missing = append(missing, "pin")
	}
	if len(missing) > 0 {
		return s.view(st), domainwf.NewValidationError(missing...)
	}

	if err := s.updateStatus(ctx, entity.JobStatusCompleted, pin); err != nil {
		return s.view(st), err
	}

	v := s.move(ctx, domainwf.SetStep(domainwf.StepComplete))
	s.emit(ctx, event.TypeJobCompleted, map[string]interface{}{
		"total": v.Total,
	})
	return v, nil
}

// Close stops the timer and publishes the final state
func (s *Session) Close(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.timer.Stop()
	s.emit(ctx, event.TypeVisitClosed, nil)
}

// move dispatches a navigation action and applies its side effects
func (s *Session) move(ctx context.Context, a domainwf.Action) View {
	prev := s.store.State()
	next := s.store.Dispatch(a)
	if prev.Step != next.Step {
		s.onStepChange(ctx, prev.Step, next)
	}
	return s.view(s.store.State())
}

// onStepChange keeps the timer bound to the service step, refreshes the
// catalogs on entering service and renders the invoice on entering invoice
func (s *Session) onStepChange(ctx context.Context, from domainwf.Step, next domainwf.State) {
	if from == domainwf.StepService {
		s.timer.Stop()
	}

	switch next.Step {
	case domainwf.StepService:
		s.timer.Start(s.tick)
		if _, err := s.refreshCatalogs(ctx); err != nil {
			s.logger.Error("Catalog refresh failed, continuing with cached data",
				"job_id", s.job.ID,
				"error", err,
			)
		}
	case domainwf.StepInvoice:
		s.renderInvoice(ctx, next)
	}
}

func (s *Session) returnToService(ctx context.Context, outcomes Outcomes) View {
	st := s.store.State()
	if outcomes.Succeeded() == 0 || !st.Step.IsLateral() {
		return s.view(st)
	}
	return s.move(ctx, domainwf.SetStep(domainwf.StepService))
}

func (s *Session) refreshCatalogs(ctx context.Context) (*Catalogs, error) {
	inventory, err := s.api.ListInventory(ctx)
	if err == nil {
		var services []entity.ProviderService
		services, err = s.api.ListProviderServices(ctx)
		if err == nil {
			cat := &Catalogs{Inventory: inventory, Services: services, FetchedAt: s.now()}
			s.mu.Lock()
			s.catalogs, s.catalogErr = cat, nil
			s.mu.Unlock()
			return cat, nil
		}
	}

	rerr := newRemoteError("load catalogs", err)
	s.mu.Lock()
	s.catalogErr = rerr
	s.mu.Unlock()
	return nil, rerr
}

func (s *Session) renderInvoice(ctx context.Context, st domainwf.State) {
	if s.renderer == nil {
		return
	}

	path, err := s.renderer.Render(ctx, s.job, st)

	s.mu.Lock()
	s.invoicePath, s.invoiceErr = path, err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Failed to render invoice", "job_id", s.job.ID, "error", err)
		return
	}

	s.logger.Info("Invoice rendered", "job_id", s.job.ID, "path", path)
	s.emit(ctx, event.TypeInvoiceRendered, map[string]interface{}{"path": path})
}

func (s *Session) updateStatus(ctx context.Context, status, pin string) error {
	op := "update status " + status

	result, err := s.api.UpdateStatus(ctx, s.job.ID, entity.StatusUpdate{Status: status, PIN: pin})
	if err != nil {
		s.logger.Error("Job status update failed",
			"job_id", s.job.ID,
			"status", status,
			"error", err,
		)
		return newRemoteError(op, err)
	}
	if result == nil || !result.Success {
		msg := "job service rejected the update"
		if result != nil && result.Message != "" {
			msg = result.Message
		}
		s.logger.Error("Job status update rejected",
			"job_id", s.job.ID,
			"status", status,
			"message", msg,
		)
		return &RemoteError{Op: op, Message: msg}
	}

	s.emit(ctx, event.TypeJobStatusUpdated, map[string]interface{}{event.KeyStatus: status})
	return nil
}

// tick is dropped when the step changed between the ticker firing and
// the dispatch
func (s *Session) tick() {
	s.store.DispatchWhen(func(st domainwf.State) bool {
		return st.Step == domainwf.StepService
	}, domainwf.Tick())
}

// publishChange turns accepted actions into visit events. Ticks are not
// published; the elapsed time travels with the next event's state.
func (s *Session) publishChange(prev, next domainwf.State, a domainwf.Action) {
	if a.Type == domainwf.ActionTick {
		return
	}

	evtType := event.TypeVisitUpdated
	payload := map[string]interface{}{
		event.KeyAction:   a.Type.String(),
		event.KeyFromStep: prev.Step.String(),
		event.KeyToStep:   next.Step.String(),
	}

	switch {
	case prev.Step != next.Step:
		evtType = event.TypeStepChanged
	case a.Type == domainwf.ActionAddItem && len(next.AdditionalItems) > 0:
		evtType = event.TypeItemAdded
		payload[event.KeyItem] = next.AdditionalItems[len(next.AdditionalItems)-1]
	}

	s.emitState(context.Background(), evtType, next, payload)
}

func (s *Session) emit(ctx context.Context, t event.Type, payload map[string]interface{}) {
	s.emitState(ctx, t, s.store.State(), payload)
}

func (s *Session) emitState(ctx context.Context, t event.Type, st domainwf.State, payload map[string]interface{}) {
	if s.events == nil {
		return
	}

	p := map[string]interface{}{
		event.KeySessionID: s.id,
		event.KeyStep:      st.Step.String(),
		event.KeyTotal:     st.ComputeTotal(),
		event.KeyState:     st,
		event.KeyJob:       s.job,
	}
	for k, v := range payload {
		p[k] = v
	}

	evt := event.NewEventWithCorrelation(t, s.job.ID, p, s.id)
	if err := s.events.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Failed to publish visit event",
			"job_id", s.job.ID,
			"event_type", t,
			"error", err,
		)
	}
}

func (s *Session) view(st domainwf.State) View {
	v := View{
		SessionID:      s.id,
		Job:            s.job,
		State:          st,
		Total:          st.ComputeTotal(),
		LedgerTotal:    st.AdditionalItems.Total(),
		NextSteps:      s.routes.Permitted(st),
		CanGoBack:      len(st.History) > 0,
		AllPhotosTaken: st.AllPhotosTaken(),
		TimerRunning:   s.timer.Running(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v.InvoicePath = s.invoicePath
	if s.catalogErr != nil {
		v.Warnings = append(v.Warnings, "catalogs unavailable: "+s.catalogErr.Error())
	}
	if s.invoiceErr != nil {
		v.Warnings = append(v.Warnings, "invoice not rendered: "+s.invoiceErr.Error())
	}
	return v
}

func atLeastOne(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

var _ Orchestrator = (*Session)(nil)
