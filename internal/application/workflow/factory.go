package workflow

import (
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// BuildVisitRoutes creates the forward navigation table of a job visit.
// Raw SET_STEP actions are not checked against it; only Advance is.
func BuildVisitRoutes() *domainwf.Routes {
	builder := domainwf.NewRouteBuilder()

	builder.Configure(domainwf.StepArrival).
		PermitIf(domainwf.StepPhotos, func(s domainwf.State) bool { return s.Arrived })

	builder.Configure(domainwf.StepPhotos).
		PermitIf(domainwf.StepInspection, domainwf.State.AllPhotosTaken)

	builder.Configure(domainwf.StepInspection).
		PermitIf(domainwf.StepDiscuss, func(s domainwf.State) bool { return s.Issue.IsValid() })

	// customer approves the work or declines it
	builder.Configure(domainwf.StepDiscuss).
		Permit(domainwf.StepService).
		Permit(domainwf.StepInvoice)

	builder.Configure(domainwf.StepService).
		Permit(domainwf.StepParts).
		Permit(domainwf.StepAdditional).
		Permit(domainwf.StepCustom).
		Permit(domainwf.StepFollowup).
		Permit(domainwf.StepApproval).
		Permit(domainwf.StepInvoice)

	for _, lateral := range []domainwf.Step{
		domainwf.StepParts,
		domainwf.StepAdditional,
		domainwf.StepCustom,
		domainwf.StepFollowup,
	} {
		builder.Configure(lateral).Permit(domainwf.StepService)
	}

	builder.Configure(domainwf.StepApproval).
		Permit(domainwf.StepInvoice)

	builder.Configure(domainwf.StepInvoice).
		Permit(domainwf.StepSignature)

	// signature -> complete only through Complete with a verification PIN

	return builder.Build()
}
