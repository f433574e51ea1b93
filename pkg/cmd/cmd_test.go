package cmd

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/channels/kafka"
	"github.com/dukex/flowhost/pkg/persistence/boltdb"
	"github.com/dukex/flowhost/pkg/persistence/file"
	"github.com/dukex/flowhost/pkg/persistence/memory"
	"github.com/dukex/flowhost/pkg/persistence/sqlite"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"memory://":                    "memory",
		"file:///var/lib/flowhost":     "file",
		"./data":                       "file",
		"bolt://data/flowhost.db":      "bolt",
		"postgres://u:p@localhost/db":  "postgres",
		"sqlite://data/flowhost.db":    "sqlite",
		"redis://localhost:6379/0":     "redis",
		"mongodb://localhost/flowhost": "mongodb",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	p, err := NewPersistence(t.Context(), logger, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Persistence{}, p)

	p, err = NewPersistence(t.Context(), logger, "file://"+dir)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	p, err = NewPersistence(t.Context(), logger, "bolt://"+filepath.Join(dir, "flowhost.db"))
	require.NoError(t, err)
	assert.IsType(t, &boltdb.Persistence{}, p)
	require.NoError(t, p.Close(t.Context()))

	p, err = NewPersistence(t.Context(), logger, "sqlite://"+filepath.Join(dir, "flowhost.sqlite"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))

	_, err = NewPersistence(t.Context(), logger, "mongodb://localhost/flowhost")
	assert.ErrorIs(t, err, ErrUnsupportedPersistence)
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("gochannel", nil, logger)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", nil, logger)
	assert.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus("nats", nil, logger)
	assert.ErrorIs(t, err, ErrUnsupportedEventBus)
}

func TestNewRegistry(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	reg, err := NewRegistry(logger, io.Discard, "")
	require.NoError(t, err)
	assert.True(t, reg.IsRegistered("WriteLine"))

	reg, err = NewRegistry(logger, io.Discard, t.TempDir())
	require.NoError(t, err)
	assert.True(t, reg.IsRegistered("Signal"))
}
