// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrConcurrencyConflict indicates the stored version moved since the workflow was read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrInvalidWorkflowID indicates an identifier that cannot be stored.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "Get", "Add", "Update")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ConflictError reports the versions involved in a failed Update.
type ConflictError struct {
	WorkflowID      string
	ExpectedVersion int64
	ActualVersion   int64 // Zero when the backend cannot tell
}

func (e *ConflictError) Error() string {
	if e.ActualVersion == 0 {
		return fmt.Sprintf("workflow %s: %v: expected version %d", e.WorkflowID, ErrConcurrencyConflict, e.ExpectedVersion)
	}

	return fmt.Sprintf("workflow %s: %v: expected version %d, stored version is %d",
		e.WorkflowID, ErrConcurrencyConflict, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyExists checks if an error indicates a duplicate workflow.
func IsWorkflowAlreadyExists(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyExists)
}

// IsConcurrencyConflict checks if an error indicates a lost optimistic concurrency race.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
