package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fieldjob/internal/application/workflow"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Fields  []string    `json:"fields,omitempty"`
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrInvalidStep), errors.Is(err, domainwf.ErrRouteNotPermitted):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// fail writes err with its mapped status. data, when given, is kept so the
// client still sees the unchanged view.
func (h *Handlers) fail(c *gin.Context, err error, data interface{}) {
	status := statusFor(err)
	resp := Response{Success: false, Data: data, Error: err.Error()}

	var vErr *domainwf.ValidationError
	if errors.As(err, &vErr) {
		resp.Fields = vErr.Fields
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"path", c.FullPath(),
			"job_id", c.Param("job_id"),
			"status", status,
			"error", err,
		)
	}
	c.JSON(status, resp)
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
