// Package boltdb provides an embedded, single-file persistence implementation backed by bbolt.
package boltdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dukex/flowhost/pkg/persistence"
)

var (
	workflowsBucket = []byte("workflows")
	indexBucket     = []byte("index")
)

// Persistence stores workflows in a bbolt database file.
type Persistence struct {
	db           *bbolt.DB
	workflowRepo *WorkflowRepository
}

// NewPersistence opens (or creates) the database file at path. The "bolt://" prefix is optional.
func NewPersistence(path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "bolt://")

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{workflowsBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize bolt database: %w", err)
	}

	return &Persistence{db: db, workflowRepo: &WorkflowRepository{db: db}}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// HealthCheck runs an empty read transaction.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return p.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(workflowsBucket) == nil {
			return fmt.Errorf("bucket %s is missing", workflowsBucket)
		}

		return nil
	})
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
