package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// StagingRow is one row destined for a staging table: the raw,
// mapper-translated column values keyed by DB column name, plus which
// operation (delete/insert) it belongs to and its 1-based row_sequence
// within its source file.
type StagingRow struct {
	Operation   string // "delete" or "insert"
	RowSequence int64
	Values      map[string]string // DB column name -> raw string value; missing key = null
}

// LoadStaging bulk-loads rows into a table's staging companion for a
// given job, tagging each with job_id/operation/row_sequence. It runs
// inside a single transaction so a partial failure leaves no rows
// committed for this job on this table.
//
// Column selection is driven by the staging table's raw columns
// (natural key + payload, all as strings) rather than the typed Table
// registry, since staging carries the archive's raw shape.
func LoadStaging(ctx context.Context, conn *sql.Conn, jobID, table string, stagingCols []string, rows []StagingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin staging load transaction: %w", err)
	}
	defer tx.Rollback()

	cols := append([]string{"job_id", "operation", "row_sequence"}, stagingCols...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		StagingTableName(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, 0, len(cols))
		args = append(args, jobID, row.Operation, row.RowSequence)
		for _, col := range stagingCols {
			v, ok := row.Values[col]
			if !ok || v == "" {
				args = append(args, nil)
				continue
			}
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert staging row (seq=%d) into %s: %w", row.RowSequence, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staging load for %s: %w", table, err)
	}
	return nil
}

// CountStaging returns the number of staged rows for a job, table, and
// operation — the input to batch-count planning.
func CountStaging(ctx context.Context, conn *sql.Conn, jobID, table, operation string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT count(*) FROM %s WHERE job_id = ? AND operation = ?",
		StagingTableName(table),
	)
	var count int64
	if err := conn.QueryRowContext(ctx, query, jobID, operation).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count staging rows for %s/%s: %w", table, operation, err)
	}
	return count, nil
}

// ClearStaging deletes all staging rows for a job across every temporal
// table. Staging rows live only for the duration of a job; this is
// called on finalize and on prepare's failure-retry path.
func ClearStaging(ctx context.Context, conn *sql.Conn, jobID string) error {
	for _, table := range TableOrder {
		query := fmt.Sprintf("DELETE FROM %s WHERE job_id = ?", StagingTableName(table))
		if _, err := conn.ExecContext(ctx, query, jobID); err != nil {
			return fmt.Errorf("failed to clear staging for %s: %w", table, err)
		}
	}
	return nil
}
