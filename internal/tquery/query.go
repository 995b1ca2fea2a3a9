// Package tquery builds the SQL used to read temporal tables: the
// current snapshot, or a reconstruction as of a given extract number.
// The current-vs-as-of query split follows
// indexer/pkg/clickhouse/dataset/dim_read_internal.go, adapted from
// ClickHouse's snapshot_ts/ingested_at/op_id ordering and is_deleted
// flag to this system's extract_number/_deleted_at_extract columns.
package tquery

import "fmt"

// Filter is a sum type selecting either the current snapshot or a
// point-in-time reconstruction as of a given extract number.
type Filter struct {
	pointInTime bool
	asOfExtract int64
}

// Current selects the latest, currently-valid rows.
func Current() Filter { return Filter{} }

// PointInTime selects the rows valid as of the given extract number:
// the latest row per natural key with _extract_number <= extractNumber
// whose _deleted_at_extract is either unset or strictly after it.
func PointInTime(extractNumber int64) Filter {
	return Filter{pointInTime: true, asOfExtract: extractNumber}
}

// TableQuery builds the SQL and positional args to read one temporal
// table under a filter, optionally restricted to a single key value
// (keyCol, keyVal) — e.g. entity_number = ? for a child table lookup.
func TableQuery(table string, keyCols []string, keyCol string, keyVal string, filter Filter) (string, []any) {
	if filter.pointInTime {
		return pointInTimeQuery(table, keyCols, keyCol, keyVal, filter.asOfExtract)
	}
	return currentQuery(table, keyCol, keyVal)
}

// currentQuery reads directly off _is_current, the cheap path: the
// loader maintains at most one _is_current=true row per natural key, so
// no window function is needed for "now".
func currentQuery(table string, keyCol string, keyVal string) (string, []any) {
	if keyCol == "" {
		return fmt.Sprintf(`SELECT * FROM %s WHERE _is_current = true`, table), nil
	}
	query := fmt.Sprintf(`SELECT * FROM %s WHERE _is_current = true AND %s = ?`, table, keyCol)
	return query, []any{keyVal}
}

// pointInTimeQuery reconstructs the state of a table as of a given
// extract number: candidate rows are those visible at that extract
// (inserted at or before it, and not yet retired, or retired strictly
// after it), ranked per natural key by recency, keeping the winner.
func pointInTimeQuery(table string, keyCols []string, keyCol string, keyVal string, asOfExtract int64) (string, []any) {
	partitionBy := keyCols[0]
	if len(keyCols) > 1 {
		partitionBy = joinCols(keyCols)
	}

	where := "_extract_number <= ? AND (_deleted_at_extract IS NULL OR _deleted_at_extract > ?)"
	args := []any{asOfExtract, asOfExtract}
	if keyCol != "" {
		where += fmt.Sprintf(" AND %s = ?", keyCol)
		args = append(args, keyVal)
	}

	query := fmt.Sprintf(`
		WITH ranked AS (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY %s ORDER BY _extract_number DESC, _snapshot_date DESC
			) AS rn
			FROM %s
			WHERE %s
		)
		SELECT * FROM ranked WHERE rn = 1
	`, partitionBy, table, where)
	return query, args
}

func joinCols(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}
