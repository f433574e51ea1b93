// Package redis provides a Redis persistence implementation for workflows.
// Workflows are hashes; kinds and activity-name indexes are sets; updates
// use WATCH/MULTI so a concurrent writer aborts the transaction.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/flowhost/pkg/persistence"
)

// Persistence stores workflows in Redis.
type Persistence struct {
	client       goredis.UniversalClient
	owned        bool
	workflowRepo *WorkflowRepository
}

// NewPersistence connects to the server named by a redis:// URL and pings it.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	p := New(client, logger)
	p.owned = true

	return p, nil
}

// New wraps an existing client. The caller owns the client lifecycle.
func New(client goredis.UniversalClient, logger *slog.Logger) *Persistence {
	return &Persistence{
		client:       client,
		workflowRepo: &WorkflowRepository{client: client, logger: logger},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// HealthCheck verifies the Redis connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the client only when NewPersistence created it.
func (p *Persistence) Close(_ context.Context) error {
	if !p.owned {
		return nil
	}

	return p.client.Close()
}
