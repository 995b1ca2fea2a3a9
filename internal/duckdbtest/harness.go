// Package duckdbtest provides an in-process DuckDB test harness, the
// embedded-engine replacement for a testcontainers-backed database fixture:
// DuckDB needs no container, so each test gets its own ":memory:" handle
// with migrations already applied.
package duckdbtest

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbo-data/importer/internal/duckdb"
)

// NewLogger returns a quiet logger for tests, louder when DEBUG is set —
// matching the conventional opt-in-verbosity test logger.
func NewLogger() *slog.Logger {
	level := slog.LevelError
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New opens an in-memory DuckDB client with the schema migrated, and
// registers cleanup to close it when the test ends.
func New(t *testing.T) *duckdb.Client {
	t.Helper()

	log := NewLogger()
	client, err := duckdb.Open(t.Context(), log, duckdb.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, duckdb.Migrate(t.Context(), log, client.DB()))

	return client
}
