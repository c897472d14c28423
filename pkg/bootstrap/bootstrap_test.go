package bootstrap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{name: "debug", level: "debug", expected: slog.LevelDebug},
		{name: "warn", level: "warn", expected: slog.LevelWarn},
		{name: "error", level: "error", expected: slog.LevelError},
		{name: "info", level: "info", expected: slog.LevelInfo},
		{name: "upper case", level: "WARN", expected: slog.LevelWarn},
		{name: "offset", level: "debug-4", expected: slog.LevelDebug - 4},
		{name: "unknown falls back to info", level: "verbose", expected: slog.LevelInfo},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, toLevel(tc.level))
		})
	}
}

func TestNewLoggerTo(t *testing.T) {
	// given
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn")

	// when
	logger.Info("hidden")
	logger.Warn("shown", "sku", "p1")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "p1", record["sku"])
}

func TestToMigrateURL(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "postgres scheme", url: "postgres://u:p@db:5432/pos", expected: "pgx5://u:p@db:5432/pos"},
		{name: "postgresql scheme", url: "postgresql://db/pos", expected: "pgx5://db/pos"},
		{name: "other scheme untouched", url: "pgx5://db/pos", expected: "pgx5://db/pos"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, toMigrateURL(tc.url))
		})
	}
}
