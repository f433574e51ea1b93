package invoker

import (
	"errors"
	"fmt"
)

var (
	ErrNotInstance          = errors.New("workflow is not an instance")
	ErrInvalidStartActivity = errors.New("invalid start activity")
	ErrInvalidResumeTarget  = errors.New("invalid resume target")
	ErrCancelled            = errors.New("invocation cancelled")
)

// InvocationError is returned when Start or Resume is called with arguments
// that do not fit the workflow. The workflow is left untouched.
type InvocationError struct {
	Op         string
	WorkflowID string
	ActivityID string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s workflow %s at activity %s: %v", e.Op, e.WorkflowID, e.ActivityID, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsInvalidResumeTarget checks if an error is an invalid resume target error.
func IsInvalidResumeTarget(err error) bool {
	return errors.Is(err, ErrInvalidResumeTarget)
}

// IsCancelled checks if an error reports a cancelled pass.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
