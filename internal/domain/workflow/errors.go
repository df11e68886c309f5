package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidStep is returned when a step name is not a known visit step
	ErrInvalidStep = errors.New("invalid step")

	// ErrRouteNotPermitted is returned when a forward move is not enabled from the current step
	ErrRouteNotPermitted = errors.New("route not permitted")

	// ErrValidation is returned when required input is missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrRemote is returned when the job service rejects or cannot serve a call
	ErrRemote = errors.New("remote call failed")
)

// ValidationError lists the fields that blocked a submission
type ValidationError struct {
	Fields []string
}

// NewValidationError creates a validation error for the given fields
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: missing or invalid %s", ErrValidation, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
