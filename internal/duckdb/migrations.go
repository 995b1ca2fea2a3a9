package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func withGoose(log *slog.Logger) error {
	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetBaseFS(MigrationsFS)
	return goose.SetDialect("duckdb")
}

// Migrate runs all pending schema migrations against db using goose,
// reading the embedded SQL files under migrations/.
func Migrate(ctx context.Context, log *slog.Logger, db *sql.DB) error {
	if err := withGoose(log); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("duckdb migrations completed")
	return nil
}

// MigrationStatus prints the status of all migrations.
func MigrationStatus(ctx context.Context, log *slog.Logger, db *sql.DB) error {
	if err := withGoose(log); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.StatusContext(ctx, db, migrationsDir)
}
