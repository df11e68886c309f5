package workflow

import (
	"errors"
	"fmt"

	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

// ErrSessionNotFound is returned when no open or resumable visit exists for a job
var ErrSessionNotFound = errors.New("visit session not found")

// RemoteError is a failed call to the job service. Local state is left
// untouched when one is returned.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func newRemoteError(op string, err error) *RemoteError {
	return &RemoteError{Op: op, Message: err.Error(), Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", domainwf.ErrRemote, e.Op, e.Message)
}

// Unwrap exposes both ErrRemote and the transport cause
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{domainwf.ErrRemote}
	}
	return []error{domainwf.ErrRemote, e.Err}
}
