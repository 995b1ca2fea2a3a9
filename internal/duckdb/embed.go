package duckdb

import "embed"

// MigrationsFS embeds the goose migration files so the binary carries its
// own schema and needs no migrations directory on disk at runtime.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
