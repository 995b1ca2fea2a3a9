// Package duckdb wraps the embedded DuckDB engine behind the narrow
// Client/Connection pair the rest of the importer depends on, mirroring
// the shape of a typical analytical-warehouse client package: one
// connection per call, opened and closed around a single façade
// operation, never pooled across calls.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Config controls how the engine attaches to its backing file. ScratchDir,
// ExtensionDir and TempDir must all point at a writable location before
// ATTACH when running in an ephemeral-filesystem environment (e.g. a
// serverless function), per the external-interfaces contract.
type Config struct {
	// Path is the DuckDB database file, or ":memory:" for a purely
	// in-process/test database (ScratchDir/ExtensionDir/TempDir are
	// ignored in that case, since there is nothing to attach).
	Path         string
	ScratchDir   string
	ExtensionDir string
	TempDir      string
}

// Client owns exactly one *sql.DB handle to the attached DuckDB catalog.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

// Open configures an ephemeral in-process DuckDB handle, points its
// scratch/extension/temp directories at writable locations, then attaches
// the durable database file and switches the default catalog to it.
func Open(ctx context.Context, log *slog.Logger, cfg Config) (*Client, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb handle: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if cfg.Path == "" || cfg.Path == ":memory:" {
		log.Info("duckdb client initialized", "path", ":memory:")
		return &Client{db: db, log: log}, nil
	}

	if err := configureDirectories(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("ATTACH '%s' AS main_db", escapeLiteral(cfg.Path))); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to attach database file %q: %w", cfg.Path, err)
	}
	if _, err := db.ExecContext(ctx, "USE main_db"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to switch catalog to main_db: %w", err)
	}

	log.Info("duckdb client initialized", "path", cfg.Path)
	return &Client{db: db, log: log}, nil
}

func configureDirectories(ctx context.Context, db *sql.DB, cfg Config) error {
	for _, setting := range []struct {
		name  string
		value string
	}{
		{"scratch_directory", cfg.ScratchDir},
		{"extension_directory", cfg.ExtensionDir},
		{"temp_directory", cfg.TempDir},
	} {
		if setting.value == "" {
			continue
		}
		stmt := fmt.Sprintf("SET %s='%s'", setting.name, escapeLiteral(setting.value))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set %s: %w", setting.name, err)
		}
	}
	return nil
}

// escapeLiteral escapes single quotes for interpolation into a SQL string
// literal. Used only for operator-supplied filesystem paths, never for
// archive-derived values (those are always parameterized, per the
// string-concatenated-SQL design note).
func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// DB returns the underlying *sql.DB for callers that need direct access
// (migrations, test harness setup).
func (c *Client) DB() *sql.DB {
	return c.db
}

// Conn returns a single checked-out connection scoped to the caller's
// context. Callers are responsible for closing it; the engine never pools
// connections across façade calls.
func (c *Client) Conn(ctx context.Context) (*sql.Conn, error) {
	return c.db.Conn(ctx)
}

// Close releases the database handle. Exactly one Close call is expected
// per Open, at the end of a façade operation.
func (c *Client) Close() error {
	return c.db.Close()
}
