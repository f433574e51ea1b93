package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/persistence/boltdb"
	"github.com/dukex/flowhost/pkg/persistence/file"
	"github.com/dukex/flowhost/pkg/persistence/memory"
	"github.com/dukex/flowhost/pkg/persistence/postgresql"
	"github.com/dukex/flowhost/pkg/persistence/redis"
	"github.com/dukex/flowhost/pkg/persistence/sqlite"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

var supportedPersistenceProviders = []string{"memory", "file", "bolt", "postgres", "postgresql", "sqlite", "redis", "rediss"}

// NewPersistence opens the repository backend named by the scheme of databaseURL.
// A URL without a scheme is a file directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "bolt":
		return opened(boltdb.NewPersistence(databaseURL))
	case "postgres", "postgresql":
		return opened(postgresql.NewPersistence(ctx, logger, databaseURL))
	case "sqlite":
		return opened(sqlite.NewPersistence(ctx, logger, databaseURL))
	case "redis", "rediss":
		return opened(redis.NewPersistence(ctx, logger, databaseURL))
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedPersistence, provider,
			strings.Join(supportedPersistenceProviders, ", "))
	}
}

// opened keeps a failed constructor from returning a non-nil interface holding a nil pointer.
func opened[P persistence.Persistence](p P, err error) (persistence.Persistence, error) {
	if err != nil {
		return nil, err
	}

	return p, nil
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "file"
	}

	return provider
}
