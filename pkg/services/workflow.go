package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

type Workflow struct {
	persistence persistence.Persistence
	now         func() time.Time
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Kind         models.WorkflowKind
	Status       models.WorkflowStatus
	DefinitionID string
	BlockedOn    string // Activity name
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows matching the filters, oldest first.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	workflows, err := w.persistence.WorkflowRepository().GetMany(ctx, listSpecification(req))
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	total := len(workflows)
	start := min(req.Offset, total)
	end := min(start+req.Limit, total)

	return &ListWorkflowsResponse{
		Workflows:   workflows[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

func listSpecification(req ListWorkflowsRequest) specification.Specification {
	specs := []specification.Specification{}

	switch req.Kind {
	case models.WorkflowKindDefinition:
		specs = append(specs, specification.IsDefinition{})
	case models.WorkflowKindInstance:
		specs = append(specs, specification.IsInstance{})
	}

	if req.Status != "" {
		specs = append(specs, specification.HasStatus{Status: req.Status})
	}

	if req.DefinitionID != "" {
		specs = append(specs, specification.DerivedFrom{DefinitionID: req.DefinitionID})
	}

	if req.BlockedOn != "" {
		specs = append(specs, specification.IsBlockedOnActivity{Name: req.BlockedOn})
	}

	if len(specs) == 0 {
		return specification.All{}
	}

	return specification.And(specs...)
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.Kind != "" && !slices.Contains([]models.WorkflowKind{models.WorkflowKindDefinition, models.WorkflowKindInstance}, req.Kind) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_KIND",
			fmt.Sprintf("invalid kind '%s', allowed: definition, instance", req.Kind),
			ErrInvalidKind,
		)
	}

	if req.Status != "" {
		allowedStatuses := []models.WorkflowStatus{
			models.WorkflowStatusIdle,
			models.WorkflowStatusCompleted,
			models.WorkflowStatusBlocked,
			models.WorkflowStatusFaulted,
		}

		if !slices.Contains(allowedStatuses, req.Status) {
			return NewValidationError(
				"validateListWorkflowsRequest",
				"INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", req.Status),
				ErrInvalidStatus,
			)
		}
	}

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().Get(ctx, id)
}

// Create adds a new definition. A missing ID is generated.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if err := w.prepare("Create", workflow); err != nil {
		return nil, err
	}

	now := w.now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.WorkflowRepository().Add(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces the definition stored under workflowID. The version of the
// given workflow must match the stored one unless it is zero, in which case
// the update applies to whatever is stored.
func (w *Workflow) Update(ctx context.Context, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	workflow.ID = workflowID

	if err := w.prepare("Update", workflow); err != nil {
		return nil, err
	}

	repository := w.persistence.WorkflowRepository()

	existing, err := repository.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing.IsInstance() {
		return nil, ErrCannotModifyInstance
	}

	workflow.CreatedAt = existing.CreatedAt

	if workflow.Version == 0 {
		workflow.Version = existing.Version
	}

	if err := repository.Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// ImportResult lists what Import did with each definition.
type ImportResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// Import creates the given definitions, replacing stored definitions that
// have the same ID. It stops at the first failure.
func (w *Workflow) Import(ctx context.Context, workflows []*models.Workflow) (*ImportResult, error) {
	result := &ImportResult{}

	for _, workflow := range workflows {
		_, err := w.Create(ctx, workflow)
		if err == nil {
			result.Created = append(result.Created, workflow.ID)

			continue
		}

		if !persistence.IsWorkflowAlreadyExists(err) {
			return result, err
		}

		workflow.Version = 0
		if _, err := w.Update(ctx, workflow.ID, workflow); err != nil {
			return result, err
		}

		result.Updated = append(result.Updated, workflow.ID)
	}

	return result, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	err := w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (w *Workflow) prepare(op string, workflow *models.Workflow) error {
	if workflow.Kind == "" {
		workflow.Kind = models.WorkflowKindDefinition
	}

	if !workflow.IsDefinition() {
		return NewValidationError(op, "INVALID_KIND", "only definitions can be created or updated", ErrInvalidKind)
	}

	if workflow.Variables == nil {
		workflow.Variables = models.NewVariables()
	}

	if err := workflow.Validate(); err != nil {
		return NewValidationError(op, "INVALID_DEFINITION", err.Error(), fmt.Errorf("%w: %w", ErrInvalidDefinition, err))
	}

	return nil
}
