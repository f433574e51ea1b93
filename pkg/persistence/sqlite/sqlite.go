// Package sqlite provides a SQLite persistence implementation for workflows.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/persistence/sqlbase"
)

// Dialect is the SQLite flavour of the shared SQL repository.
var Dialect = sqlbase.Dialect{
	Name:   "sqlite",
	Rebind: sqlbase.QuestionPlaceholders,
	IsUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error

		return errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
	},
}

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	db           *sql.DB
	workflowRepo *sqlbase.WorkflowRepository
}

// NewPersistence opens the database file named by databaseURL ("sqlite://" prefix optional).
// SQLite allows a single writer, so the pool holds one connection and
// transactions queue in the process instead of failing with SQLITE_BUSY.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	err = sqlbase.NewMigrationManager(logger, database, Dialect, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		workflowRepo: sqlbase.NewWorkflowRepository(database, Dialect, logger),
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// HealthCheck verifies the database file is reachable.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
