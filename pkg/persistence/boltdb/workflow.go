package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

const sep = "\x00"

// WorkflowRepository keeps each workflow as a JSON value keyed by ID. The index
// bucket holds empty values under "role\x00name\x00id" keys, including a
// "kind" role, so lookups are prefix scans.
type WorkflowRepository struct {
	db *bbolt.DB
}

func (r *WorkflowRepository) GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error) {
	lookup := persistence.LookupFor(spec)
	if lookup.None {
		return []*models.Workflow{}, nil
	}

	var workflows []*models.Workflow

	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(workflowsBucket)

		ids, scanAll := candidateIDs(tx.Bucket(indexBucket), lookup)
		if scanAll {
			return bucket.ForEach(func(_, body []byte) error {
				workflow, err := decode(body)
				if err != nil {
					return err
				}

				workflows = append(workflows, workflow)

				return ctx.Err()
			})
		}

		for _, id := range ids {
			body := bucket.Get([]byte(id))
			if body == nil {
				continue
			}

			workflow, err := decode(body)
			if err != nil {
				return err
			}

			workflows = append(workflows, workflow)
		}

		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	return persistence.Filter(workflows, spec), nil
}

func (r *WorkflowRepository) Get(_ context.Context, id string) (*models.Workflow, error) {
	var workflow *models.Workflow

	err := r.db.View(func(tx *bbolt.Tx) error {
		body := tx.Bucket(workflowsBucket).Get([]byte(id))
		if body == nil {
			return persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
		}

		var err error
		workflow, err = decode(body)

		return err
	})

	return workflow, err
}

func (r *WorkflowRepository) Add(_ context.Context, workflow *models.Workflow) error {
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

	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(workflowsBucket)

		if bucket.Get([]byte(stored.ID)) != nil {
			return persistence.NewWorkflowError("Add", stored.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return put(tx, nil, &stored)
	})
	if err != nil {
		return err
	}

	workflow.CreatedAt, workflow.UpdatedAt, workflow.Version = stored.CreatedAt, stored.UpdatedAt, stored.Version

	return nil
}

// Update compares versions inside the write transaction; bbolt allows one writer at a time.
func (r *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	next := *workflow
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	err := r.db.Update(func(tx *bbolt.Tx) error {
		body := tx.Bucket(workflowsBucket).Get([]byte(workflow.ID))
		if body == nil {
			return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
		}

		previous, err := decode(body)
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

		return put(tx, previous, &next)
	})
	if err != nil {
		return err
	}

	workflow.Version, workflow.UpdatedAt = next.Version, next.UpdatedAt

	return nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(workflowsBucket)

		body := bucket.Get([]byte(id))
		if body == nil {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		previous, err := decode(body)
		if err != nil {
			return err
		}

		index := tx.Bucket(indexBucket)
		for _, key := range indexKeys(previous) {
			if err := index.Delete(key); err != nil {
				return err
			}
		}

		return bucket.Delete([]byte(id))
	})
}

// put writes the document and moves its index keys from previous to workflow.
func put(tx *bbolt.Tx, previous, workflow *models.Workflow) error {
	body, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	index := tx.Bucket(indexBucket)

	if previous != nil {
		for _, key := range indexKeys(previous) {
			if err := index.Delete(key); err != nil {
				return err
			}
		}
	}

	for _, key := range indexKeys(workflow) {
		if err := index.Put(key, []byte{}); err != nil {
			return err
		}
	}

	return tx.Bucket(workflowsBucket).Put([]byte(workflow.ID), body)
}

func indexKeys(workflow *models.Workflow) [][]byte {
	keys := [][]byte{indexKey("kind", string(workflow.Kind), workflow.ID)}

	for _, entry := range persistence.IndexEntriesFor(workflow) {
		keys = append(keys, indexKey(entry.Role, entry.Name, workflow.ID))
	}

	return keys
}

func indexKey(role, name, id string) []byte {
	return []byte(role + sep + name + sep + id)
}

// candidateIDs scans the most selective index. It reports scanAll when no index applies.
func candidateIDs(index *bbolt.Bucket, lookup persistence.IndexLookup) ([]string, bool) {
	var prefix []byte

	switch {
	case lookup.Role != "":
		prefix = []byte(lookup.Role + sep + lookup.Name + sep)
	case lookup.Kind != "":
		prefix = []byte("kind" + sep + string(lookup.Kind) + sep)
	default:
		return nil, true
	}

	var ids []string

	c := index.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		ids = append(ids, string(k[len(prefix):]))
	}

	return ids, false
}

func decode(body []byte) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := json.Unmarshal(body, &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	return &workflow, nil
}
