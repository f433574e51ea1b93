// Package persistence provides the storage abstraction for workflow definitions and instances.
package persistence

import (
	"context"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/specification"
)

// Persistence is a storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores definitions and instances. Every workflow handed
// out is a private copy; changing it has no effect until Update.
type WorkflowRepository interface {
	// GetMany returns every workflow satisfying spec, oldest first.
	GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error)

	// Get returns ErrWorkflowNotFound when id is unknown.
	Get(ctx context.Context, id string) (*models.Workflow, error)

	// Add stores a new workflow at version 1 and sets workflow.Version.
	// It returns ErrWorkflowAlreadyExists when the ID is taken.
	Add(ctx context.Context, workflow *models.Workflow) error

	// Update replaces the stored workflow when its version still equals
	// workflow.Version, then increments workflow.Version. Otherwise it
	// returns ErrConcurrencyConflict and stores nothing.
	Update(ctx context.Context, workflow *models.Workflow) error

	Delete(ctx context.Context, id string) error
}
