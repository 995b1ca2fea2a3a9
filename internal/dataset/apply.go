package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// keyColumns returns the column(s) on the target table that identify a
// natural-key "slot": the same column(s) used on the staging table to
// express the natural key. For composite-ID tables this is the single
// "id" column (the mapper already folded all natural-key components,
// including the denomination hash, into it).
func keyColumns(table Table) []string {
	if table.Composite {
		return []string{"id"}
	}
	return table.NaturalKeyCols
}

// ApplyDeleteBatch executes one delete batch: every staged "delete" row
// in [lo, hi] (by row_sequence) whose key matches a currently-current
// target row is marked historical at extractNumber. It is safe to call
// twice for the same batch range; the second call affects zero rows
// because the first already cleared _is_current.
func ApplyDeleteBatch(ctx context.Context, conn *sql.Conn, table string, jobID string, extractNumber int64, lo, hi int64) (int64, error) {
	schema, ok := Tables[table]
	if !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	keyCols := keyColumns(schema)
	keyList := strings.Join(keyCols, ", ")

	query := fmt.Sprintf(`
		UPDATE %s
		SET _is_current = false, _deleted_at_extract = ?
		WHERE (%s) IN (
			SELECT %s FROM %s
			WHERE job_id = ? AND operation = 'delete' AND row_sequence BETWEEN ? AND ?
		)
		AND _is_current = true
	`, table, keyList, keyList, StagingTableName(table))

	res, err := conn.ExecContext(ctx, query, extractNumber, jobID, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("failed to apply delete batch for %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for %s delete batch: %w", table, err)
	}
	return affected, nil
}

// ApplyInsertBatch executes one insert batch. It deduplicates staged rows
// in [lo, hi] by key, keeping the highest row_sequence (last-row-wins),
// retires any existing current row sharing that key (a full reload
// re-stamps every row with the new extract number; an update-archive
// insert supersedes the row it replaces), then inserts the winners.
// ON CONFLICT DO NOTHING absorbs cross-batch replays.
func ApplyInsertBatch(ctx context.Context, conn *sql.Conn, table string, jobID string, extractNumber int64, snapshotDate string, lo, hi int64) (int64, error) {
	schema, ok := Tables[table]
	if !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert batch transaction for %s: %w", table, err)
	}
	defer tx.Rollback()

	keyCols := keyColumns(schema)
	keyList := strings.Join(keyCols, ", ")
	// The winners CTE selects from stg_<table>, so its column list must
	// match the staging table's actual columns, not the target table's
	// full payload — enterprises' primary_name* columns are denormalized
	// onto the target row by buildInsertSelect, not staged from the CSV.
	stagingCols := append(append([]string{}, schema.NaturalKeyCols...), schema.StagingPayloadCols()...)

	dedupCTE := fmt.Sprintf(`
		winners AS (
			SELECT %s
			FROM (
				SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY row_sequence DESC) AS rn
				FROM %s
				WHERE job_id = ? AND operation = 'insert' AND row_sequence BETWEEN ? AND ?
			) ranked
			WHERE rn = 1
		)
	`, strings.Join(stagingCols, ", "), keyList, StagingTableName(table))

	supersedeQuery := fmt.Sprintf(`
		WITH %s
		UPDATE %s
		SET _is_current = false, _deleted_at_extract = ?
		WHERE (%s) IN (SELECT %s FROM winners)
		AND _is_current = true
	`, dedupCTE, table, keyList, keyList)

	if _, err := tx.ExecContext(ctx, supersedeQuery, jobID, lo, hi, extractNumber); err != nil {
		return 0, fmt.Errorf("failed to supersede prior current rows for %s: %w", table, err)
	}

	insertCols := schema.AllColumns()
	selectExprs := buildInsertSelect(table, schema)

	insertQuery := fmt.Sprintf(`
		WITH %s
		INSERT INTO %s (%s)
		SELECT %s
		FROM winners w
		ON CONFLICT (%s) DO NOTHING
	`, dedupCTE, table, strings.Join(insertCols, ", "), selectExprs, keyList)

	res, err := tx.ExecContext(ctx, insertQuery, jobID, lo, hi, snapshotDate, extractNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to apply insert batch for %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for %s insert batch: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert batch for %s: %w", table, err)
	}
	return affected, nil
}

// buildInsertSelect builds the SELECT list for the target table's full
// column order (natural key + payload), adding the four bookkeeping
// columns as literals bound to the batch's snapshot_date/extract_number
// parameters. Columns the winners CTE doesn't carry (enterprises'
// primary_name* denormalization) are carried forward from the most
// recent existing row for the same enterprise_number instead of read
// off w, so the row remains displayable before the name resolver runs.
func buildInsertSelect(table string, schema Table) string {
	cols := append(append([]string{}, schema.NaturalKeyCols...), schema.PayloadCols...)
	parts := make([]string, 0, len(cols)+4)
	for _, col := range cols {
		if table == "enterprises" && isPrimaryNameCol(col) {
			parts = append(parts, carryForwardExpr(col))
			continue
		}
		parts = append(parts, "w."+col)
	}
	parts = append(parts, "? AS _snapshot_date", "? AS _extract_number", "true AS _is_current", "NULL AS _deleted_at_extract")
	return strings.Join(parts, ", ")
}

func isPrimaryNameCol(col string) bool {
	switch col {
	case "primary_name", "primary_name_language", "primary_name_nl", "primary_name_fr", "primary_name_de":
		return true
	}
	return false
}

// carryForwardExpr builds a correlated subquery pulling the given
// primary_name* column from the most recent existing row (current or
// historical) for the same enterprise, falling back to the enterprise
// number as the initial placeholder name.
func carryForwardExpr(col string) string {
	return fmt.Sprintf(`COALESCE((
		SELECT e.%s FROM enterprises e
		WHERE e.enterprise_number = w.enterprise_number
		ORDER BY e._extract_number DESC LIMIT 1
	), w.enterprise_number) AS %s`, col, col)
}
