// Package postgresql provides PostgreSQL persistence implementation for workflows.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/persistence/sqlbase"
)

const uniqueViolation = pq.ErrorCode("23505")

// Dialect is the PostgreSQL flavour of the shared SQL repository.
var Dialect = sqlbase.Dialect{
	Name:   "postgres",
	Rebind: sqlbase.DollarPlaceholders,
	IsUniqueViolation: func(err error) bool {
		var pqErr *pq.Error

		return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
	},
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *sqlbase.WorkflowRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize components
	migrationManager := sqlbase.NewMigrationManager(logger, database, Dialect, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: sqlbase.NewWorkflowRepository(database, Dialect, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// WorkflowRepository returns the workflow repository backed by PostgreSQL.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
