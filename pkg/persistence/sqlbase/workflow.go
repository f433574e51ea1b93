package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/specification"
)

// WorkflowRepository stores workflows as JSON bodies next to the columns the
// host queries by. workflow_activity_index holds one row per start or blocking
// activity name so trigger lookups never decode unrelated bodies.
type WorkflowRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, dialect: dialect, logger: logger}
}

// GetMany probes the most selective index for spec, then filters the candidates in memory.
func (r *WorkflowRepository) GetMany(ctx context.Context, spec specification.Specification) ([]*models.Workflow, error) {
	lookup := persistence.LookupFor(spec)
	if lookup.None {
		return []*models.Workflow{}, nil
	}

	query := `SELECT w.body, w.version FROM workflows w`

	var (
		where []string
		args  []any
	)

	if lookup.Role != "" {
		query += ` JOIN workflow_activity_index i ON i.workflow_id = w.id`
		where = append(where, `i.role = ?`, `i.activity_name = ?`)
		args = append(args, lookup.Role, lookup.Name)
	}

	if lookup.Kind != "" {
		where = append(where, `w.kind = ?`)
		args = append(args, string(lookup.Kind))
	}

	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}

	query += ` ORDER BY w.created_at, w.id`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return persistence.Filter(workflows, spec), nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT body, version FROM workflows WHERE id = ?`), id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
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

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO workflows (id, kind, definition_id, version, status, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			stored.ID, string(stored.Kind), stored.DefinitionID, stored.Version, string(stored.Status),
			string(body), stored.CreatedAt, stored.UpdatedAt,
		)
		if err != nil {
			if r.dialect.IsUniqueViolation(err) {
				return persistence.NewWorkflowError("Add", stored.ID, persistence.ErrWorkflowAlreadyExists)
			}

			return fmt.Errorf("failed to insert workflow %s: %w", stored.ID, err)
		}

		return r.writeIndex(ctx, tx, &stored)
	})
	if err != nil {
		return err
	}

	workflow.CreatedAt, workflow.UpdatedAt, workflow.Version = stored.CreatedAt, stored.UpdatedAt, stored.Version

	return nil
}

// Update relies on the version predicate of a single UPDATE statement; the
// database serializes competing writers on the row.
func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	next := *workflow
	next.Version++
	next.UpdatedAt = time.Now().UTC()

	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", next.ID, err)
	}

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, r.dialect.Rebind(`
			UPDATE workflows
			SET version = version + 1, status = ?, body = ?, updated_at = ?
			WHERE id = ? AND version = ?`),
			string(next.Status), string(body), next.UpdatedAt, workflow.ID, workflow.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update workflow %s: %w", workflow.ID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update workflow %s: %w", workflow.ID, err)
		}

		if affected == 0 {
			return r.missOrConflict(ctx, tx, workflow)
		}

		_, err = tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM workflow_activity_index WHERE workflow_id = ?`), workflow.ID)
		if err != nil {
			return fmt.Errorf("failed to clear index of workflow %s: %w", workflow.ID, err)
		}

		return r.writeIndex(ctx, tx, &next)
	})
	if err != nil {
		return err
	}

	workflow.Version, workflow.UpdatedAt = next.Version, next.UpdatedAt

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM workflow_activity_index WHERE workflow_id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to clear index of workflow %s: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM workflows WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete workflow %s: %w", id, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete workflow %s: %w", id, err)
		}

		if affected == 0 {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return nil
	})
}

func (r *WorkflowRepository) missOrConflict(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	var actual int64

	err := tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT version FROM workflows WHERE id = ?`), workflow.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to read version of workflow %s: %w", workflow.ID, err)
	}

	return &persistence.ConflictError{
		WorkflowID:      workflow.ID,
		ExpectedVersion: workflow.Version,
		ActualVersion:   actual,
	}
}

func (r *WorkflowRepository) writeIndex(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	for _, entry := range persistence.IndexEntriesFor(workflow) {
		_, err := tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO workflow_activity_index (workflow_id, role, activity_name) VALUES (?, ?, ?)`),
			workflow.ID, entry.Role, entry.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to index workflow %s: %w", workflow.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		body    string
		version int64
	)

	if err := row.Scan(&body, &version); err != nil {
		return nil, err
	}

	var workflow models.Workflow
	if err := json.Unmarshal([]byte(body), &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	workflow.Version = version

	return &workflow, nil
}
