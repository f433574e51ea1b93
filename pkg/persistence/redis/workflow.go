package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

// WorkflowRepository implements persistence.WorkflowRepository on Redis.
type WorkflowRepository struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

func (r *WorkflowRepository) GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error) {
	lookup := persistence.LookupFor(spec)
	if lookup.None {
		return []*models.Workflow{}, nil
	}

	var (
		ids []string
		err error
	)

	switch {
	case lookup.Role != "":
		ids, err = r.client.SMembers(ctx, indexKey(lookup.Role, lookup.Name)).Result()
	case lookup.Kind != "":
		ids, err = r.client.SMembers(ctx, kindKey(string(lookup.Kind))).Result()
	default:
		ids, err = r.client.SUnion(ctx,
			kindKey(string(models.WorkflowKindDefinition)),
			kindKey(string(models.WorkflowKindInstance)),
		).Result()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	if len(ids) == 0 {
		return []*models.Workflow{}, nil
	}

	cmds := make([]*goredis.SliceCmd, len(ids))

	_, err = r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, workflowKey(id), "body", "version")
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for i, cmd := range cmds {
		workflow, err := decode(cmd.Val())
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			// Deleted between the set read and the fetch.
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to decode workflow %s: %w", ids[i], err)
		}

		workflows = append(workflows, workflow)
	}

	return persistence.Filter(workflows, spec), nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*models.Workflow, error) {
	values, err := r.client.HMGet(ctx, workflowKey(id), "body", "version").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	workflow, err := decode(values)
	if errors.Is(err, persistence.ErrWorkflowNotFound) {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, err
}

func (r *WorkflowRepository) Add(ctx context.Context, workflow *models.Workflow) error {
	if err := persistence.ValidateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Add", workflow.ID, err)
	}

	stored := *workflow

	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	stored.UpdatedAt = now
	stored.Version = 1

	body, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", stored.ID, err)
	}

	key := workflowKey(stored.ID)

	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}

		if exists > 0 {
			return persistence.NewWorkflowError("Add", stored.ID, persistence.ErrWorkflowAlreadyExists)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, "body", string(body), "version", stored.Version, "kind", string(stored.Kind))
			pipe.SAdd(ctx, kindKey(string(stored.Kind)), stored.ID)
			addIndexes(ctx, pipe, &stored)

			return nil
		})

		return err
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		return persistence.NewWorkflowError("Add", stored.ID, persistence.ErrWorkflowAlreadyExists)
	}

	if err != nil {
		if persistence.IsWorkflowAlreadyExists(err) {
			return err
		}

		return fmt.Errorf("failed to add workflow %s: %w", stored.ID, err)
	}

	workflow.CreatedAt, workflow.UpdatedAt, workflow.Version = stored.CreatedAt, stored.UpdatedAt, stored.Version

	return nil
}

// Update reads the stored version under WATCH. A write by anyone else before
// EXEC aborts the transaction, which is reported as a conflict.
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	next := *workflow
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", next.ID, err)
	}

	key := workflowKey(workflow.ID)

	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		values, err := tx.HMGet(ctx, key, "body", "version").Result()
		if err != nil {
			return err
		}

		previous, err := decode(values)
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
		}

		if err != nil {
			return err
		}

		if previous.Version != workflow.Version {
			return &persistence.ConflictError{
				WorkflowID:      workflow.ID,
				ExpectedVersion: workflow.Version,
				ActualVersion:   previous.Version,
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			removeIndexes(ctx, pipe, previous)
			pipe.HSet(ctx, key, "body", string(body), "version", next.Version)
			addIndexes(ctx, pipe, &next)

			return nil
		})

		return err
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		r.logger.DebugContext(ctx, "workflow changed during update", "module", "redis", "workflow_id", workflow.ID)

		return &persistence.ConflictError{WorkflowID: workflow.ID, ExpectedVersion: workflow.Version}
	}

	if err != nil {
		return err
	}

	workflow.Version, workflow.UpdatedAt = next.Version, next.UpdatedAt

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	key := workflowKey(id)

	return r.client.Watch(ctx, func(tx *goredis.Tx) error {
		values, err := tx.HMGet(ctx, key, "body", "version").Result()
		if err != nil {
			return err
		}

		previous, err := decode(values)
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			removeIndexes(ctx, pipe, previous)
			pipe.SRem(ctx, kindKey(string(previous.Kind)), id)
			pipe.Del(ctx, key)

			return nil
		})

		return err
	}, key)
}

func addIndexes(ctx context.Context, pipe goredis.Pipeliner, workflow *models.Workflow) {
	for _, entry := range persistence.IndexEntriesFor(workflow) {
		pipe.SAdd(ctx, indexKey(entry.Role, entry.Name), workflow.ID)
	}
}

func removeIndexes(ctx context.Context, pipe goredis.Pipeliner, workflow *models.Workflow) {
	for _, entry := range persistence.IndexEntriesFor(workflow) {
		pipe.SRem(ctx, indexKey(entry.Role, entry.Name), workflow.ID)
	}
}

// decode turns an HMGET of body and version into a workflow.
func decode(values []any) (*models.Workflow, error) {
	if len(values) != 2 || values[0] == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	body, _ := values[0].(string)
	rawVersion, _ := values[1].(string)

	var workflow models.Workflow
	if err := json.Unmarshal([]byte(body), &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid stored version %q: %w", rawVersion, err)
	}

	workflow.Version = version

	return &workflow, nil
}
