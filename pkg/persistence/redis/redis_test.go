package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/persistence/persistencetest"
	"github.com/dukex/flowhost/pkg/persistence/redis"
)

var redisContainer *tcredis.RedisContainer

func setupTestRedis(t *testing.T) *redis.Persistence {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error

		redisContainer, err = tcredis.Run(ctx, "redis:7-alpine")
		require.NoError(t, err)
	}

	redisURL, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := redis.NewPersistence(ctx, logger, redisURL)
	require.NoError(t, err)

	return p
}

func TestWorkflowRepository(t *testing.T) {
	persistencetest.RunWorkflowRepositoryTests(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return setupTestRedis(t)
	})
}
