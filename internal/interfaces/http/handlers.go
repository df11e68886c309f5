package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fieldjob/internal/application/workflow"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine workflow.VisitEngine
	health HealthFunc
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.VisitEngine, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		health: health,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	ActiveVisits int               `json:"active_visits"`
	Components   map[string]string `json:"components,omitempty"`
}

// OpenVisitRequest opens or resumes the visit of a job
type OpenVisitRequest struct {
	JobID        string  `json:"job_id" validate:"required"`
	FinalPrice   float64 `json:"final_price" validate:"gte=0"`
	CustomerName string  `json:"customer_name"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	Description  string  `json:"description"`
}

// IssueRequest selects the diagnosis
type IssueRequest struct {
	Code string `json:"code" validate:"required"`
}

// StepRequest asks for a forward move
type StepRequest struct {
	Step string `json:"step" validate:"required"`
}

// PartsRequest confirms inventory selections
type PartsRequest struct {
	Parts []workflow.PartSelection `json:"parts" validate:"required,min=1,dive"`
}

// ServicesRequest confirms provider service selections
type ServicesRequest struct {
	Services []workflow.ServiceSelection `json:"services" validate:"required,min=1,dive"`
}

// RescheduleRequest changes the completion branch. Each field is optional
// and applied in order: type, patch, shortcut.
type RescheduleRequest struct {
	Type     *string                   `json:"type"`
	Patch    *domainwf.ReschedulePatch `json:"patch"`
	Shortcut string                    `json:"shortcut"`
}

// CompleteRequest carries the customer PIN
type CompleteRequest struct {
	PIN string `json:"pin"`
}

// BatchResponse is the answer to a batched catalog write
type BatchResponse struct {
	View     workflow.View     `json:"view"`
	Outcomes workflow.Outcomes `json:"outcomes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ActiveVisits: h.engine.Active(),
	}
	if h.health != nil {
		resp.Components = h.health(c.Request.Context())
		for _, status := range resp.Components {
			if status != "ok" {
				resp.Status = "degraded"
			}
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// OpenVisit handles POST /api/v1/visits
func (h *Handlers) OpenVisit(c *gin.Context) {
	var req OpenVisitRequest
	if !h.bind(c, &req) {
		return
	}

	o, err := h.engine.Open(c.Request.Context(), entity.Job{
		ID:           req.JobID,
		FinalPrice:   req.FinalPrice,
		CustomerName: req.CustomerName,
		Address:      req.Address,
		Phone:        req.Phone,
		Description:  req.Description,
	})
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	h.logger.Info("Visit opened via API", "job_id", o.JobID(), "session_id", o.ID())
	ok(c, o.Snapshot())
}

// GetVisit handles GET /api/v1/visits/:job_id
func (h *Handlers) GetVisit(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	ok(c, o.Snapshot())
}

// CloseVisit handles DELETE /api/v1/visits/:job_id
func (h *Handlers) CloseVisit(c *gin.Context) {
	if err := h.engine.Close(c.Request.Context(), c.Param("job_id")); err != nil {
		h.fail(c, err, nil)
		return
	}
	ok(c, gin.H{"job_id": c.Param("job_id"), "closed": true})
}

// GetTotals handles GET /api/v1/visits/:job_id/totals
func (h *Handlers) GetTotals(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	ok(c, o.Totals())
}

// GetCatalogs handles GET /api/v1/visits/:job_id/catalogs
func (h *Handlers) GetCatalogs(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	catalogs, err := o.Catalogs(c.Request.Context())
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	ok(c, catalogs)
}

// GetLog handles GET /api/v1/visits/:job_id/log
func (h *Handlers) GetLog(c *gin.Context) {
	records, err := h.engine.History(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	ok(c, records)
}

// CallCustomer handles POST /api/v1/visits/:job_id/call
func (h *Handlers) CallCustomer(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	ok(c, o.CallCustomer())
}

// MarkEnRoute handles POST /api/v1/visits/:job_id/en-route
func (h *Handlers) MarkEnRoute(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.MarkEnRoute(c.Request.Context()))
}

// MarkArrived handles POST /api/v1/visits/:job_id/arrived
func (h *Handlers) MarkArrived(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.MarkArrived(c.Request.Context()))
}

// GoBack handles POST /api/v1/visits/:job_id/back
func (h *Handlers) GoBack(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	ok(c, o.GoBack(c.Request.Context()))
}

// Advance handles POST /api/v1/visits/:job_id/step
func (h *Handlers) Advance(c *gin.Context) {
	var req StepRequest
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.Advance(c.Request.Context(), domainwf.Step(req.Step)))
}

// TogglePhoto handles POST /api/v1/visits/:job_id/photos/:index
func (h *Handlers) TogglePhoto(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.badRequest(c, "invalid photo index")
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.TogglePhoto(index))
}

// SetIssue handles POST /api/v1/visits/:job_id/issue
func (h *Handlers) SetIssue(c *gin.Context) {
	var req IssueRequest
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.SetIssue(domainwf.IssueCode(req.Code)))
}

// ConfirmParts handles POST /api/v1/visits/:job_id/parts
func (h *Handlers) ConfirmParts(c *gin.Context) {
	var req PartsRequest
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respondBatch(c)(o.ConfirmParts(c.Request.Context(), req.Parts))
}

// ConfirmServices handles POST /api/v1/visits/:job_id/services
func (h *Handlers) ConfirmServices(c *gin.Context) {
	var req ServicesRequest
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respondBatch(c)(o.ConfirmServices(c.Request.Context(), req.Services))
}

// AddCustomItem handles POST /api/v1/visits/:job_id/custom
func (h *Handlers) AddCustomItem(c *gin.Context) {
	var req workflow.CustomEntry
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.AddCustomItem(c.Request.Context(), req))
}

// SetFollowup handles POST /api/v1/visits/:job_id/followup
func (h *Handlers) SetFollowup(c *gin.Context) {
	var req domainwf.FollowupData
	if !h.bind(c, &req) {
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.SetFollowup(&req))
}

// ClearFollowup handles DELETE /api/v1/visits/:job_id/followup
func (h *Handlers) ClearFollowup(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.SetFollowup(nil))
}

// UpdateReschedule handles POST /api/v1/visits/:job_id/reschedule
func (h *Handlers) UpdateReschedule(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}

	view := o.Snapshot()
	var err error
	if req.Type != nil {
		if view, err = o.SetRescheduleType(domainwf.RescheduleType(*req.Type)); err != nil {
			h.fail(c, err, view)
			return
		}
	}
	if req.Patch != nil {
		view = o.UpdateReschedule(*req.Patch)
	}
	if req.Shortcut != "" {
		if view, err = o.ApplyReturnShortcut(domainwf.ReturnShortcut(req.Shortcut)); err != nil {
			h.fail(c, err, view)
			return
		}
	}
	ok(c, view)
}

// SubmitApproval handles POST /api/v1/visits/:job_id/approval
func (h *Handlers) SubmitApproval(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.SubmitApproval(c.Request.Context()))
}

// SignCustomer handles POST /api/v1/visits/:job_id/sign/customer
func (h *Handlers) SignCustomer(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	ok(c, o.SignCustomer())
}

// SignTech handles POST /api/v1/visits/:job_id/sign/tech
func (h *Handlers) SignTech(c *gin.Context) {
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.SignTech())
}

// Complete handles POST /api/v1/visits/:job_id/complete
func (h *Handlers) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	o, found := h.visit(c)
	if !found {
		return
	}
	h.respond(c)(o.Complete(c.Request.Context(), req.PIN))
}

// visit looks up the orchestrator of the :job_id path parameter
func (h *Handlers) visit(c *gin.Context) (workflow.Orchestrator, bool) {
	o, err := h.engine.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.fail(c, err, nil)
		return nil, false
	}
	return o, true
}

// bind decodes the JSON body and runs struct validation
func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.badRequest(c, "invalid request body")
		return false
	}
	if err := domainwf.ValidateStruct(req); err != nil {
		h.fail(c, err, nil)
		return false
	}
	return true
}

func (h *Handlers) respond(c *gin.Context) func(workflow.View, error) {
	return func(view workflow.View, err error) {
		if err != nil {
			h.fail(c, err, view)
			return
		}
		ok(c, view)
	}
}

func (h *Handlers) respondBatch(c *gin.Context) func(workflow.View, workflow.Outcomes, error) {
	return func(view workflow.View, outcomes workflow.Outcomes, err error) {
		body := BatchResponse{View: view, Outcomes: outcomes}
		if err != nil {
			h.fail(c, err, body)
			return
		}
		ok(c, body)
	}
}
