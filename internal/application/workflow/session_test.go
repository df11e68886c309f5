package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fieldjob/internal/domain/entity"
	"github.com/garyjia/fieldjob/internal/domain/event"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

var (
	testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	testJob = entity.Job{ID: "job-1", CustomerName: "Dana Reyes", Address: "12 Elm St", FinalPrice: 2500}
)

func newTestSession(t *testing.T, api *mockJobAPI, initial domainwf.State, opts ...SessionOption) (*Session, *mockDispatcher) {
	t.Helper()
	d := &mockDispatcher{}
	base := []SessionOption{
		WithEvents(d),
		WithSessionClock(func() time.Time { return testNow }),
		WithTimerInterval(time.Hour),
		WithSessionID("session-1"),
	}
	s := NewSession(testJob, initial, api, append(base, opts...)...)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, d
}

// stateAt builds a visit that already passed arrival, photos and inspection
func stateAt(step domainwf.Step, history ...domainwf.Step) domainwf.State {
	s := domainwf.NewState(2500)
	s.Called, s.EnRoute, s.Arrived = true, true, true
	for i := range s.Photos {
		s.Photos[i] = true
	}
	s.Issue = domainwf.IssueCompressor
	s.Step = step
	s.History = append([]domainwf.Step{}, history...)
	return s
}

func TestSession_EnRouteRequiresCall(t *testing.T) {
	api := &mockJobAPI{}
	s, _ := newTestSession(t, api, domainwf.NewState(2500))

	v, err := s.MarkEnRoute(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
	assert.False(t, v.State.EnRoute)
	assert.Empty(t, api.Calls(), "no remote call before validation passes")
}

func TestSession_StatusUpdateFailures(t *testing.T) {
	tests := []struct {
		name    string
		result  *entity.StatusResult
		err     error
		message string
	}{
		{
			name:    "transport error",
			err:     errors.New("connection refused"),
			message: "connection refused",
		},
		{
			name:    "rejected by service",
			result:  &entity.StatusResult{Success: false, Message: "job is locked"},
			message: "job is locked",
		},
		{
			name:    "rejected without message",
			result:  &entity.StatusResult{Success: false},
			message: "job service rejected the update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockJobAPI{
				updateStatusFunc: func(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error) {
					return tt.result, tt.err
				},
			}
			s, d := newTestSession(t, api, domainwf.NewState(2500))
			s.CallCustomer()

			v, err := s.MarkEnRoute(context.Background())

			require.Error(t, err)
			assert.True(t, errors.Is(err, domainwf.ErrRemote))
			var rerr *RemoteError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.message, rerr.Message)
			assert.False(t, v.State.EnRoute)
			assert.NotContains(t, d.Types(), event.TypeJobStatusUpdated)
		})
	}
}

func TestSession_ArrivalFlow(t *testing.T) {
	api := &mockJobAPI{}
	s, d := newTestSession(t, api, domainwf.NewState(2500))
	ctx := context.Background()

	_, err := s.MarkArrived(ctx)
	assert.True(t, errors.Is(err, domainwf.ErrValidation), "arrived requires en route")

	v := s.CallCustomer()
	require.NotNil(t, v.State.CallTime)
	assert.Equal(t, testNow, *v.State.CallTime)

	_, err = s.MarkEnRoute(ctx)
	require.NoError(t, err)
	v, err = s.MarkArrived(ctx)
	require.NoError(t, err)

	assert.True(t, v.State.Arrived)
	assert.Equal(t, []domainwf.Step{domainwf.StepPhotos}, v.NextSteps)
	assert.Equal(t, []string{"status:en_route", "status:arrived"}, api.Calls())

	// repeating is harmless and does not call the service again
	_, err = s.MarkArrived(ctx)
	require.NoError(t, err)
	assert.Len(t, api.Calls(), 2)

	v, err = s.Advance(ctx, domainwf.StepPhotos)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepPhotos, v.State.Step)
	assert.Contains(t, d.Types(), event.TypeJobStatusUpdated)
	assert.Contains(t, d.Types(), event.TypeStepChanged)
}

func TestSession_AdvanceIsGated(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, domainwf.NewState(2500))
	ctx := context.Background()

	_, err := s.Advance(ctx, domainwf.StepPhotos)
	assert.True(t, errors.Is(err, domainwf.ErrRouteNotPermitted))

	_, err = s.Advance(ctx, domainwf.Step("moon"))
	assert.True(t, errors.Is(err, domainwf.ErrInvalidStep))

	assert.Equal(t, domainwf.StepArrival, s.Snapshot().State.Step)
}

func TestSession_PhotosThenBackKeepsArrivalFlags(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, domainwf.NewState(2500))
	ctx := context.Background()

	s.CallCustomer()
	_, _ = s.MarkEnRoute(ctx)
	_, _ = s.MarkArrived(ctx)
	_, err := s.Advance(ctx, domainwf.StepPhotos)
	require.NoError(t, err)

	for i := range domainwf.PhotoCategories {
		_, err := s.TogglePhoto(i)
		require.NoError(t, err)
	}
	_, err = s.TogglePhoto(len(domainwf.PhotoCategories))
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	v := s.Snapshot()
	assert.True(t, v.AllPhotosTaken)
	assert.Equal(t, []domainwf.Step{domainwf.StepInspection}, v.NextSteps)

	v = s.GoBack(ctx)
	assert.Equal(t, domainwf.StepArrival, v.State.Step)
	assert.True(t, v.State.Called && v.State.EnRoute && v.State.Arrived)
}

func TestSession_InspectionNeedsIssue(t *testing.T) {
	initial := stateAt(domainwf.StepInspection, domainwf.StepArrival, domainwf.StepPhotos)
	initial.Issue = domainwf.IssueNone
	s, _ := newTestSession(t, &mockJobAPI{}, initial)
	ctx := context.Background()

	_, err := s.Advance(ctx, domainwf.StepDiscuss)
	assert.True(t, errors.Is(err, domainwf.ErrRouteNotPermitted))

	_, err = s.SetIssue(domainwf.IssueCode("gremlins"))
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	_, err = s.SetIssue(domainwf.IssueRefrigerantLeak)
	require.NoError(t, err)

	v, err := s.Advance(ctx, domainwf.StepDiscuss)
	require.NoError(t, err)
	assert.Equal(t, []domainwf.Step{domainwf.StepService, domainwf.StepInvoice}, v.NextSteps)
}

func TestSession_ServiceStartsTimerAndLoadsCatalogs(t *testing.T) {
	api := &mockJobAPI{}
	renderer := &mockRenderer{}
	s, d := newTestSession(t, api, stateAt(domainwf.StepDiscuss), WithRenderer(renderer))
	ctx := context.Background()

	v, err := s.Advance(ctx, domainwf.StepService)
	require.NoError(t, err)
	assert.True(t, v.TimerRunning)
	assert.Equal(t, []string{"inventory", "services"}, api.Calls())

	cat, err := s.Catalogs(ctx)
	require.NoError(t, err)
	assert.Len(t, cat.Inventory, 2)
	assert.Len(t, api.Calls(), 2, "catalogs are cached")

	v, err = s.Advance(ctx, domainwf.StepInvoice)
	require.NoError(t, err)
	assert.False(t, v.TimerRunning)
	assert.Equal(t, 1, renderer.rendered)
	assert.Equal(t, "/tmp/invoice-job-1.xlsx", v.InvoicePath)
	assert.Contains(t, d.Types(), event.TypeInvoiceRendered)
	assert.Equal(t, []domainwf.Step{domainwf.StepSignature}, v.NextSteps)
}

func TestSession_CatalogFailureDoesNotBlockService(t *testing.T) {
	api := &mockJobAPI{
		listInventoryFunc: func(ctx context.Context) ([]entity.InventoryItem, error) {
			return nil, errors.New("inventory down")
		},
	}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepDiscuss))
	ctx := context.Background()

	v, err := s.Advance(ctx, domainwf.StepService)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepService, v.State.Step)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "inventory down")

	_, _, err = s.ConfirmParts(ctx, []PartSelection{{InventoryItemID: "inv-1", Quantity: 1}})
	assert.True(t, errors.Is(err, domainwf.ErrRemote))
}

func TestSession_InvoiceRenderFailureIsReported(t *testing.T) {
	renderer := &mockRenderer{
		renderFunc: func(ctx context.Context, job entity.Job, state domainwf.State) (string, error) {
			return "", errors.New("disk full")
		},
	}
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepDiscuss), WithRenderer(renderer))

	v, err := s.Advance(context.Background(), domainwf.StepInvoice)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepInvoice, v.State.Step)
	assert.Empty(t, v.InvoicePath)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "disk full")
}

func TestSession_TimerTicksOnlyInService(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepDiscuss, domainwf.StepInspection),
		WithTimerInterval(5*time.Millisecond))
	ctx := context.Background()

	_, err := s.Advance(ctx, domainwf.StepService)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Snapshot().State.TimerSeconds >= 2
	}, time.Second, 5*time.Millisecond)

	v := s.GoBack(ctx)
	assert.Equal(t, domainwf.StepDiscuss, v.State.Step)
	assert.False(t, v.TimerRunning)

	stopped := s.Snapshot().State.TimerSeconds
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, s.Snapshot().State.TimerSeconds, "timer keeps its value and stops")

	v, err = s.Advance(ctx, domainwf.StepService)
	require.NoError(t, err)
	assert.True(t, v.TimerRunning)
	require.Eventually(t, func() bool {
		return s.Snapshot().State.TimerSeconds > stopped
	}, time.Second, 5*time.Millisecond)
}

func TestSession_ConfirmPartsPerEntryOutcomes(t *testing.T) {
	api := &mockJobAPI{
		addPartsFunc: func(ctx context.Context, jobID string, parts []entity.PartLine) error {
			if parts[0].InventoryItemID == "inv-2" {
				return errors.New("out of stock")
			}
			return nil
		},
	}
	s, d := newTestSession(t, api, stateAt(domainwf.StepParts, domainwf.StepDiscuss, domainwf.StepService))

	v, outcomes, err := s.ConfirmParts(context.Background(), []PartSelection{
		{InventoryItemID: "inv-1", Quantity: 1},
		{InventoryItemID: "inv-2", Quantity: 2},
		{InventoryItemID: "inv-9", Quantity: 1},
	})

	require.NoError(t, err, "partial success is not an error")
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, "out of stock", outcomes[1].Error)
	assert.Contains(t, outcomes[2].Error, "unknown inventory item")
	assert.Len(t, outcomes.Failed(), 2)

	require.Len(t, v.State.AdditionalItems, 1)
	line := v.State.AdditionalItems[0]
	assert.Equal(t, "inv-1", line.CatalogID)
	assert.Equal(t, domainwf.ItemKindPart, line.Kind)
	assert.NotEmpty(t, line.ID)
	assert.Equal(t, 3000.0, v.Total)
	assert.Equal(t, domainwf.StepService, v.State.Step, "returns to service after a success")
	assert.Contains(t, d.Types(), event.TypeItemAdded)
}

func TestSession_ConfirmPartsAllFailedStaysOnStep(t *testing.T) {
	api := &mockJobAPI{
		addPartsFunc: func(ctx context.Context, jobID string, parts []entity.PartLine) error {
			return errors.New("service unavailable")
		},
	}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepParts, domainwf.StepService))

	v, outcomes, err := s.ConfirmParts(context.Background(), []PartSelection{{InventoryItemID: "inv-1"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainwf.ErrRemote))
	assert.Len(t, outcomes, 1)
	assert.Equal(t, domainwf.StepParts, v.State.Step)
	assert.Equal(t, 2500.0, v.Total)

	_, _, err = s.ConfirmParts(context.Background(), nil)
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
}

func TestSession_CompressorScenarioTotal(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepParts, domainwf.StepService))

	v, outcomes, err := s.ConfirmParts(context.Background(), []PartSelection{
		{InventoryItemID: "inv-1", Quantity: 1},
		{InventoryItemID: "inv-2", Quantity: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, outcomes.Succeeded())
	assert.Equal(t, 3400.0, v.Total)
	assert.Equal(t, 900.0, v.LedgerTotal)
}

func TestSession_ConfirmServices(t *testing.T) {
	api := &mockJobAPI{}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepAdditional, domainwf.StepService))

	v, outcomes, err := s.ConfirmServices(context.Background(), []ServiceSelection{
		{ProviderOfferedServiceID: "svc-1", Quantity: 0},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, outcomes.Succeeded())
	require.Len(t, v.State.AdditionalItems, 1)
	assert.Equal(t, domainwf.ItemKindService, v.State.AdditionalItems[0].Kind)
	assert.Equal(t, 1, v.State.AdditionalItems[0].Quantity)
	assert.Equal(t, 2650.0, v.Total)
	assert.Contains(t, api.Calls(), "service:svc-1")
}

func TestSession_AddCustomItem(t *testing.T) {
	api := &mockJobAPI{}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepCustom, domainwf.StepService))
	ctx := context.Background()

	_, err := s.AddCustomItem(ctx, CustomEntry{Kind: "service", Name: "  ", Price: 80})
	var verr *domainwf.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"name"}, verr.Fields)
	assert.Empty(t, api.Calls())

	v, err := s.AddCustomItem(ctx, CustomEntry{Kind: "service", Name: "Duct cleaning", Price: 80, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, v.State.AdditionalItems, 1)
	item := v.State.AdditionalItems[0]
	assert.Equal(t, domainwf.ItemKindCustomService, item.Kind)
	assert.Equal(t, "custom-1", item.CatalogID)
	assert.Equal(t, 2660.0, v.Total)
	assert.Equal(t, domainwf.StepService, v.State.Step)
}

func TestSession_AddCustomItemRemoteFailure(t *testing.T) {
	api := &mockJobAPI{
		addCustomItemFunc: func(ctx context.Context, jobID string, item entity.CustomItem) (*entity.CustomItem, error) {
			return nil, errors.New("bad gateway")
		},
	}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepCustom, domainwf.StepService))

	v, err := s.AddCustomItem(context.Background(), CustomEntry{Kind: "part", Name: "Bracket", Price: 12})
	assert.True(t, errors.Is(err, domainwf.ErrRemote))
	assert.Empty(t, v.State.AdditionalItems)
	assert.Equal(t, domainwf.StepCustom, v.State.Step)
}

func TestSession_SubmitApprovalWithoutReschedule(t *testing.T) {
	api := &mockJobAPI{}
	renderer := &mockRenderer{}
	s, d := newTestSession(t, api, stateAt(domainwf.StepApproval, domainwf.StepService), WithRenderer(renderer))

	v, err := s.SubmitApproval(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"verification"}, api.Calls())
	assert.Equal(t, domainwf.StepInvoice, v.State.Step)
	assert.Equal(t, 1, renderer.rendered)
	assert.Contains(t, d.Types(), event.TypeVerificationRequested)
}

func TestSession_SubmitApprovalValidatesBranchFirst(t *testing.T) {
	api := &mockJobAPI{}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepApproval, domainwf.StepService))

	_, err := s.SetRescheduleType(domainwf.RescheduleWorkshopRequired)
	require.NoError(t, err)
	s.UpdateReschedule(domainwf.ReschedulePatch{PartName: strPtr("compressor")})

	v, err := s.SubmitApproval(context.Background())

	var verr *domainwf.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"expected_return_date", "repair_required", "estimated_cost"}, verr.Fields)
	assert.Empty(t, api.Calls())
	assert.Equal(t, domainwf.StepApproval, v.State.Step)
}

func TestSession_SubmitApprovalPartsPending(t *testing.T) {
	var got entity.PartsPendingRequest
	api := &mockJobAPI{
		createPartsPendingFunc: func(ctx context.Context, jobID string, req entity.PartsPendingRequest) error {
			got = req
			return nil
		},
	}
	s, d := newTestSession(t, api, stateAt(domainwf.StepApproval, domainwf.StepService))

	_, err := s.SetRescheduleType(domainwf.ReschedulePartsPending)
	require.NoError(t, err)
	s.UpdateReschedule(domainwf.ReschedulePatch{
		PartName:              strPtr("  compressor , capacitor "),
		EstimatedAvailability: strPtr("3-5 business days"),
		Notes:                 strPtr("call first"),
	})
	v, err := s.ApplyReturnShortcut(domainwf.ShortcutTomorrow)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-11", v.State.Reschedule.ExpectedReturnDate)
	assert.Equal(t, "Tomorrow", v.State.Reschedule.ReturnDateLabel)

	v, err = s.SubmitApproval(context.Background())

	require.NoError(t, err)
	assert.Equal(t, entity.PartsPendingRequest{
		RequiredParts:         []string{"compressor", "capacitor"},
		EstimatedAvailability: "3-5 business days",
		ExpectedReturnDate:    "2025-01-11",
		Notes:                 "call first",
	}, got)
	assert.Equal(t, domainwf.StepComplete, v.State.Step)
	assert.Contains(t, d.Types(), event.TypePartsPendingCreated)

	_, err = s.SubmitApproval(context.Background())
	assert.True(t, errors.Is(err, domainwf.ErrRouteNotPermitted))
}

func TestSession_SubmitApprovalWorkshop(t *testing.T) {
	var got entity.WorkshopRequest
	api := &mockJobAPI{
		createWorkshopFunc: func(ctx context.Context, jobID string, req entity.WorkshopRequest) error {
			got = req
			return nil
		},
	}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepApproval, domainwf.StepService))

	_, _ = s.SetRescheduleType(domainwf.RescheduleWorkshopRequired)
	s.UpdateReschedule(domainwf.ReschedulePatch{
		PartName:           strPtr("fan motor"),
		RepairRequired:     strPtr("rewind"),
		EstimatedCost:      strPtr("450"),
		ExpectedReturnDate: strPtr("2025-01-20"),
	})

	v, err := s.SubmitApproval(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fan motor", got.ItemDescription)
	assert.Equal(t, 450.0, got.EstimatedCost)
	assert.Equal(t, "rewind", got.RepairRequired)
	assert.Equal(t, domainwf.StepComplete, v.State.Step)
}

func TestSession_SubmitApprovalRemoteFailure(t *testing.T) {
	api := &mockJobAPI{
		requestVerificationFunc: func(ctx context.Context, jobID string) error {
			return errors.New("timeout")
		},
	}
	s, _ := newTestSession(t, api, stateAt(domainwf.StepApproval, domainwf.StepService))

	v, err := s.SubmitApproval(context.Background())

	assert.True(t, errors.Is(err, domainwf.ErrRemote))
	assert.Equal(t, domainwf.StepApproval, v.State.Step)
}

func TestSession_SubmitApprovalStepGate(t *testing.T) {
	tests := []struct {
		name    string
		state   domainwf.State
		allowed bool
	}{
		{"fresh visit at arrival", domainwf.NewState(2500), false},
		{"photos", stateAt(domainwf.StepPhotos, domainwf.StepArrival), false},
		{"discuss", stateAt(domainwf.StepDiscuss, domainwf.StepInspection), false},
		{"invoice", stateAt(domainwf.StepInvoice, domainwf.StepApproval), false},
		{"signature", stateAt(domainwf.StepSignature, domainwf.StepInvoice), false},
		{"service", stateAt(domainwf.StepService, domainwf.StepDiscuss), true},
		{"approval", stateAt(domainwf.StepApproval, domainwf.StepService), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockJobAPI{}
			s, _ := newTestSession(t, api, tt.state)
			_, err := s.SetRescheduleType(domainwf.ReschedulePartsPending)
			require.NoError(t, err)
			s.UpdateReschedule(domainwf.ReschedulePatch{PartName: strPtr("coil")})
			_, err = s.ApplyReturnShortcut(domainwf.ShortcutToday)
			require.NoError(t, err)

			v, err := s.SubmitApproval(context.Background())

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, []string{"parts-pending"}, api.Calls())
				assert.Equal(t, domainwf.StepComplete, v.State.Step)
				return
			}
			assert.True(t, errors.Is(err, domainwf.ErrRouteNotPermitted))
			assert.Empty(t, api.Calls())
			assert.Equal(t, tt.state.Step, v.State.Step)
		})
	}
}

func TestSession_CompleteOnlyFromSignature(t *testing.T) {
	api := &mockJobAPI{}
	s, _ := newTestSession(t, api, domainwf.NewState(2500))
	ctx := context.Background()

	// signatures are plain flags and can be set anywhere
	s.SignCustomer()
	_, err := s.SignTech()
	require.NoError(t, err)

	v, err := s.Complete(ctx, "1234")

	assert.True(t, errors.Is(err, domainwf.ErrRouteNotPermitted))
	assert.Equal(t, domainwf.StepArrival, v.State.Step)
	assert.Empty(t, api.Calls())

	s.Dispatch(ctx, domainwf.SetStep(domainwf.StepSignature))
	v, err = s.Complete(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepComplete, v.State.Step)
	assert.Equal(t, []string{"status:completed"}, api.Calls())
}

func TestSession_Signatures(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepSignature, domainwf.StepInvoice))

	_, err := s.SignTech()
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	s.SignCustomer()
	v, err := s.SignTech()
	require.NoError(t, err)
	assert.True(t, v.State.TechConfirmed)
}

func TestSession_Complete(t *testing.T) {
	var pins []string
	api := &mockJobAPI{
		updateStatusFunc: func(ctx context.Context, jobID string, update entity.StatusUpdate) (*entity.StatusResult, error) {
			pins = append(pins, update.PIN)
			if update.PIN != "4321" {
				return &entity.StatusResult{Success: false, Message: "invalid verification code"}, nil
			}
			return &entity.StatusResult{Success: true, Message: "completed"}, nil
		},
	}
	s, d := newTestSession(t, api, stateAt(domainwf.StepSignature, domainwf.StepInvoice))
	ctx := context.Background()

	_, err := s.Complete(ctx, " ")
	var verr *domainwf.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"tech_signature", "pin"}, verr.Fields)

	s.SignCustomer()
	_, err = s.SignTech()
	require.NoError(t, err)

	v, err := s.Complete(ctx, "0000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid verification code")
	assert.Equal(t, domainwf.StepSignature, v.State.Step)

	v, err = s.Complete(ctx, "4321")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepComplete, v.State.Step)
	assert.Equal(t, []string{"0000", "4321"}, pins)
	assert.Contains(t, d.Types(), event.TypeJobCompleted)
	assert.Empty(t, v.NextSteps)
}

func TestSession_FollowupValidation(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepFollowup, domainwf.StepService))

	_, err := s.SetFollowup(&domainwf.FollowupData{Reason: "recheck"})
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	v, err := s.SetFollowup(&domainwf.FollowupData{Reason: "recheck", Time: "10:00", Date: "2025-01-15"})
	require.NoError(t, err)
	require.NotNil(t, v.State.Followup)

	v, err = s.SetFollowup(nil)
	require.NoError(t, err)
	assert.Nil(t, v.State.Followup)
}

func TestSession_RescheduleSwitchKeepsData(t *testing.T) {
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepApproval, domainwf.StepService))

	_, _ = s.SetRescheduleType(domainwf.ReschedulePartsPending)
	s.UpdateReschedule(domainwf.ReschedulePatch{PartName: strPtr("coil")})
	v, err := s.SetRescheduleType(domainwf.RescheduleWorkshopRequired)

	require.NoError(t, err)
	assert.Equal(t, "coil", v.State.Reschedule.PartName)

	_, err = s.SetRescheduleType(domainwf.RescheduleType("later"))
	assert.True(t, errors.Is(err, domainwf.ErrValidation))

	_, err = s.ApplyReturnShortcut(domainwf.ReturnShortcut("Next Year"))
	assert.True(t, errors.Is(err, domainwf.ErrValidation))
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, d := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepService, domainwf.StepDiscuss))
	require.True(t, s.Snapshot().TimerRunning, "resumed service visit restarts its timer")

	s.Close(context.Background())
	s.Close(context.Background())

	assert.False(t, s.Snapshot().TimerRunning)
	closed := 0
	for _, typ := range d.Types() {
		if typ == event.TypeVisitClosed {
			closed++
		}
	}
	assert.Equal(t, 1, closed)
}

func TestSession_EventsCarryState(t *testing.T) {
	s, d := newTestSession(t, &mockJobAPI{}, domainwf.NewState(2500))

	s.CallCustomer()

	require.Len(t, d.events, 1)
	evt := d.events[0]
	assert.Equal(t, event.TypeVisitUpdated, evt.Type)
	assert.Equal(t, "job-1", evt.JobID)
	assert.Equal(t, "session-1", evt.CorrelationID)
	assert.Equal(t, "CALL_CUSTOMER", evt.GetPayloadString("action"))
	st, ok := evt.Payload["state"].(domainwf.State)
	require.True(t, ok)
	assert.True(t, st.Called)
}

func strPtr(s string) *string { return &s }

func TestSession_RawDispatchAndTotals(t *testing.T) {
	renderer := &mockRenderer{}
	s, _ := newTestSession(t, &mockJobAPI{}, stateAt(domainwf.StepSignature, domainwf.StepInvoice), WithRenderer(renderer))
	ctx := context.Background()

	v := s.Dispatch(ctx, domainwf.AddItem(domainwf.Item{Name: "labor", UnitPrice: 120, Quantity: 2}))
	assert.Equal(t, 2740.0, v.Total)
	assert.Equal(t, Totals{Base: 2500, Ledger: 240, Total: 2740}, s.Totals())

	// raw SET_STEP skips the route table but keeps step side effects
	v = s.Dispatch(ctx, domainwf.SetStep(domainwf.StepService))
	assert.Equal(t, domainwf.StepService, v.State.Step)
	assert.True(t, v.TimerRunning)

	v = s.Dispatch(ctx, domainwf.SetStep(domainwf.StepInvoice))
	assert.False(t, v.TimerRunning)
	assert.Equal(t, 1, renderer.rendered)

	v = s.Dispatch(ctx, domainwf.SignTech())
	assert.False(t, v.State.TechConfirmed, "guards still apply")
}
