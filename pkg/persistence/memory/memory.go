// Package memory provides an in-process persistence implementation for workflows.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

// Persistence keeps workflows in memory. Nothing survives a restart.
type Persistence struct {
	workflowRepo *WorkflowRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{workflowRepo: NewWorkflowRepository()}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// WorkflowRepository stores deep copies so callers never share state with the store.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	now       func() time.Time
}

func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{
		workflows: make(map[string]*models.Workflow),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *WorkflowRepository) GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if persistence.LookupFor(spec).None {
		return []*models.Workflow{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Workflow, 0)

	for _, workflow := range r.workflows {
		if spec.IsSatisfiedBy(workflow) {
			matched = append(matched, workflow.Clone())
		}
	}

	persistence.SortByCreation(matched)

	return matched, nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*models.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return workflow.Clone(), nil
}

func (r *WorkflowRepository) Add(ctx context.Context, workflow *models.Workflow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := persistence.ValidateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Add", workflow.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[workflow.ID]; exists {
		return persistence.NewWorkflowError("Add", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	now := r.now()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version = 1

	r.workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.workflows[workflow.ID]
	if !ok {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	if stored.Version != workflow.Version {
		return &persistence.ConflictError{
			WorkflowID:      workflow.ID,
			ExpectedVersion: workflow.Version,
			ActualVersion:   stored.Version,
		}
	}

	workflow.Version++
	workflow.UpdatedAt = r.now()

	r.workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.workflows, id)

	return nil
}
