package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandler(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer

		logger := slog.New(NewHandler(&buf, "info", FormatJSON))
		logger.Debug("hidden")
		logger.Info("Trigger processed", "module", "host", "started", 2)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Trigger processed", entry["msg"])
		assert.Equal(t, "host", entry["module"])
		assert.InDelta(t, 2, entry["started"], 0)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer

		slog.New(NewHandler(&buf, "warn", "unknown")).Warn("careful", "module", "invoker")
		assert.Contains(t, buf.String(), "msg=careful module=invoker")
	})

	t.Run("tint", func(t *testing.T) {
		var buf bytes.Buffer

		logger := slog.New(NewHandler(&buf, "debug", FormatTint))
		logger.Debug("walking", "activity_id", "greet")
		assert.Contains(t, buf.String(), "walking")
		assert.Contains(t, buf.String(), "greet")
	})
}
