// Package orchestrator wires the archive reader, mapper, staging
// loader, batch planner/executor, and primary-name resolver behind the
// four façade operations the durable runtime calls: prepare,
// processBatch, getProgress, finalize. Grounded in the flow description
// tying these components together, with each façade call independently
// idempotent and safe to retry.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kbo-data/importer/internal/apperrors"
	"github.com/kbo-data/importer/internal/archive"
	"github.com/kbo-data/importer/internal/dataset"
	"github.com/kbo-data/importer/internal/mapper"
)

// csvTableNames maps a DB plural table name to the archive's CSV
// singular prefix (e.g. "enterprises" -> "enterprise" for
// "enterprise.csv" / "enterprise_delete.csv" / "enterprise_insert.csv").
var csvTableNames = map[string]string{
	"enterprises":    "enterprise",
	"establishments": "establishment",
	"denominations":  "denomination",
	"addresses":      "address",
	"activities":     "activity",
	"contacts":       "contact",
	"branches":       "branch",
}

// stagingColumnsFor returns a table's raw staging columns in the order
// LoadStaging should receive them: natural-key fields as carried by the
// CSV (entity_number, not the mapper-derived composite id) followed by
// payload fields actually read off a row, per dataset.Table's own
// StagingPayloadCols — the same source of truth apply.go's winners CTE
// uses, so the two can't drift apart. The composite "id" column is
// populated separately by the mapper, not read from the CSV, so
// composite tables carry no natural-key prefix here (their CSV-side key
// parts, e.g. entity_number/entity_type, are already payload columns).
func stagingColumnsFor(table string) []string {
	schema := dataset.Tables[table]
	if schema.Composite {
		return schema.StagingPayloadCols()
	}
	return append(append([]string{}, schema.NaturalKeyCols...), schema.StagingPayloadCols()...)
}

// compositeKeyFields names the CSV-derived fields (after mapper
// translation) that feed ComposeID for each composite table, in order.
// Denominations alone hashes its final component (the free-text name)
// to bound the key's length.
var compositeKeyFields = map[string][]string{
	"denominations": {"entity_number", "type_of_denomination", "language"},
	"addresses":     {"entity_number", "type_of_address"},
	"activities":    {"entity_number", "activity_group", "nace_version", "nace_code", "classification"},
	"contacts":      {"entity_number", "entity_contact", "contact_type", "value"},
	"branches":      {"entity_number", "enterprise_number"},
}

// ingestTable loads one table's staged rows for a job from the archive,
// returning the number of delete and insert rows loaded. A missing CSV
// entry is zero rows, not an error, per the staging loader's tolerance
// for absent per-table files.
func ingestTable(ctx context.Context, conn *sql.Conn, a *archive.Archive, jobID, table, extractType string) (deleted, inserted int64, err error) {
	csvName := csvTableNames[table]
	cols := stagingColumnsFor(table)

	if extractType == "update" {
		deleted, err = ingestOperation(ctx, conn, a, jobID, table, cols, csvName+"_delete.csv", "delete", true)
		if err != nil {
			return 0, 0, err
		}
		inserted, err = ingestOperation(ctx, conn, a, jobID, table, cols, csvName+"_insert.csv", "insert", false)
		if err != nil {
			return 0, 0, err
		}
		return deleted, inserted, nil
	}

	// Full archives ship one CSV per table: every row is an insert.
	inserted, err = ingestOperation(ctx, conn, a, jobID, table, cols, csvName+".csv", "insert", false)
	if err != nil {
		return 0, 0, err
	}
	return 0, inserted, nil
}

// ingestOperation reads one archive entry, maps its rows, and bulk
// loads them into the table's staging companion. keyOnly means the
// entry is a single-column key list (a _delete.csv), not a full row.
func ingestOperation(ctx context.Context, conn *sql.Conn, a *archive.Archive, jobID, table string, cols []string, entryName, operation string, keyOnly bool) (int64, error) {
	data, err := a.ReadEntry(entryName)
	if err != nil {
		return 0, nil // EntryNotFound: zero rows, not an error.
	}

	var rows []dataset.StagingRow
	err = archive.ParseCSV(data, true, func(idx int, rec []string, header []string) error {
		values, err := mapRow(table, rec, header, keyOnly)
		if err != nil {
			return err
		}
		rows = append(rows, dataset.StagingRow{Operation: operation, RowSequence: int64(idx), Values: values})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", entryName, err)
	}

	loadCols := cols
	if isComposite(table) {
		loadCols = append([]string{"id"}, cols...)
	}
	if err := dataset.LoadStaging(ctx, conn, jobID, table, loadCols, rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// mapRow translates one CSV record into DB-column values, deriving
// entity_type and the composite id where applicable. keyOnly entries
// (delete lists) carry only the natural key in their first column.
func mapRow(table string, rec []string, header []string, keyOnly bool) (map[string]string, error) {
	values := map[string]string{}

	if keyOnly {
		if len(rec) == 0 {
			return nil, fmt.Errorf("empty delete row for %s", table)
		}
		if isComposite(table) {
			// The delete file's single column is the same composite id
			// space used everywhere else, not raw natural-key parts: a
			// partial delete line can't reconstruct a denomination hash.
			values["id"] = rec[0]
		} else {
			values[naturalKeyCSVColumn(table)] = rec[0]
		}
		return values, nil
	}

	for i, raw := range rec {
		if i >= len(header) {
			break
		}
		dbCol, ok := mapper.ColumnName(header[i])
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s header", apperrors.ErrUnknownColumn, header[i], table)
		}
		val := raw
		if mapper.IsDateColumn(dbCol) {
			val = mapper.ConvertDate(val)
		}
		values[dbCol] = val
	}

	if entityNumberCol := entityNumberColumn(table); entityNumberCol != "" {
		if en, ok := values[entityNumberCol]; ok {
			values["entity_type"] = mapper.EntityType(en)
		}
	}

	if isComposite(table) {
		values["id"] = composeID(table, values)
	}

	return values, nil
}

func naturalKeyCSVColumn(table string) string {
	switch table {
	case "enterprises":
		return "enterprise_number"
	case "establishments":
		return "establishment_number"
	default:
		return "entity_number"
	}
}

func entityNumberColumn(table string) string {
	switch table {
	case "enterprises", "establishments":
		return ""
	default:
		return "entity_number"
	}
}

func isComposite(table string) bool {
	_, ok := compositeKeyFields[table]
	return ok
}

func composeID(table string, values map[string]string) string {
	fields := compositeKeyFields[table]
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		parts = append(parts, values[f])
	}
	if table == "denominations" {
		parts = append(parts, mapper.ShortHash(values["denomination"]))
	}
	return mapper.ComposeID(parts...)
}
