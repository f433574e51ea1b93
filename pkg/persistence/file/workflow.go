package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

// WorkflowRepository stores one JSON document per workflow under root/workflows.
// The version check and the write happen under one lock, so a single process
// gets compare-and-swap semantics. Several processes sharing a directory do not.
type WorkflowRepository struct {
	root string // File system root for storing workflows
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetMany loads every workflow file and keeps the ones satisfying spec.
func (wr *WorkflowRepository) GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error) {
	if persistence.LookupFor(spec).None {
		return []*models.Workflow{}, nil
	}

	wr.mu.RLock()
	defer wr.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		workflow, err := wr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return persistence.Filter(workflows, spec), nil
}

// Get retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) Get(_ context.Context, id string) (*models.Workflow, error) {
	if err := persistence.ValidateID(id); err != nil {
		return nil, persistence.NewWorkflowError("Get", id, err)
	}

	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflow, err := wr.read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, err
}

// Add writes a new workflow file at version 1.
func (wr *WorkflowRepository) Add(_ context.Context, workflow *models.Workflow) error {
	if err := persistence.ValidateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Add", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, err := os.Stat(wr.path(workflow.ID)); err == nil {
		return persistence.NewWorkflowError("Add", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version = 1

	return wr.write(workflow)
}

// Update rewrites the workflow file if the stored version still matches.
func (wr *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	if err := persistence.ValidateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	stored, err := wr.read(workflow.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return err
	}

	if stored.Version != workflow.Version {
		return &persistence.ConflictError{
			WorkflowID:      workflow.ID,
			ExpectedVersion: workflow.Version,
			ActualVersion:   stored.Version,
		}
	}

	next := *workflow
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	if err := wr.write(&next); err != nil {
		return err
	}

	workflow.Version = next.Version
	workflow.UpdatedAt = next.UpdatedAt

	return nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := persistence.ValidateID(id); err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.path(id))
	if err != nil && os.IsNotExist(err) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (wr *WorkflowRepository) dir() string {
	return path.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Clean(path.Join(wr.dir(), id+".json"))
}

func (wr *WorkflowRepository) read(id string) (*models.Workflow, error) {
	body, err := os.ReadFile(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fs.ErrNotExist
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// write replaces the file through a rename so readers never see a partial document.
func (wr *WorkflowRepository) write(workflow *models.Workflow) error {
	err := os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	tmp := wr.path(workflow.ID) + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	if err := os.Rename(tmp, wr.path(workflow.ID)); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	return nil
}
