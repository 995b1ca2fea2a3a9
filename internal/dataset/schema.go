// Package dataset describes the seven temporal tables' schemas and
// implements the staging load and batch apply (delete/insert) mechanics
// that write into them. The dimension-dataset package this follows is
// adapted from ClickHouse's hash-diff/argMax style to this system's
// extract-number/window-function style.
package dataset

// Table is one of the seven temporal tables' static schema description:
// its name, natural-key column(s), and payload columns. NaturalKeyCols
// is the table's semantic key — either a single column (enterprises,
// establishments) or the single composite "id" column the mapper
// constructs. DenormalizedCols names payload columns that exist on the
// target table but not on its staging companion, because they're
// carried forward from a prior row rather than read off the CSV (the
// enterprises primary_name* columns — see buildInsertSelect).
type Table struct {
	Name             string
	NaturalKeyCols   []string
	PayloadCols      []string
	DenormalizedCols []string
	Composite        bool
}

// StagingPayloadCols returns the payload columns actually present on
// this table's staging companion: PayloadCols minus DenormalizedCols.
func (t Table) StagingPayloadCols() []string {
	if len(t.DenormalizedCols) == 0 {
		return t.PayloadCols
	}
	denorm := make(map[string]bool, len(t.DenormalizedCols))
	for _, c := range t.DenormalizedCols {
		denorm[c] = true
	}
	cols := make([]string, 0, len(t.PayloadCols))
	for _, c := range t.PayloadCols {
		if !denorm[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// TableOrder is the fixed dependency order processing must follow,
// across tables: enterprises, establishments, denominations, addresses,
// activities, contacts, branches.
var TableOrder = []string{
	"enterprises",
	"establishments",
	"denominations",
	"addresses",
	"activities",
	"contacts",
	"branches",
}

// BookkeepingCols are the four columns every temporal table carries in
// addition to its natural key and payload columns.
var BookkeepingCols = []string{"_snapshot_date", "_extract_number", "_is_current", "_deleted_at_extract"}

// Tables is the registry of all seven temporal table schemas, keyed by
// DB table name.
var Tables = map[string]Table{
	"enterprises": {
		Name:           "enterprises",
		NaturalKeyCols: []string{"enterprise_number"},
		PayloadCols: []string{
			"status", "juridical_situation", "type_of_enterprise", "juridical_form",
			"juridical_form_cac", "start_date",
			"primary_name", "primary_name_language", "primary_name_nl", "primary_name_fr", "primary_name_de",
		},
		DenormalizedCols: []string{
			"primary_name", "primary_name_language", "primary_name_nl", "primary_name_fr", "primary_name_de",
		},
	},
	"establishments": {
		Name:           "establishments",
		NaturalKeyCols: []string{"establishment_number"},
		PayloadCols:    []string{"enterprise_number", "start_date"},
	},
	"denominations": {
		Name:           "denominations",
		NaturalKeyCols: []string{"id"},
		Composite:      true,
		PayloadCols:    []string{"entity_number", "entity_type", "language", "type_of_denomination", "denomination"},
	},
	"addresses": {
		Name:           "addresses",
		NaturalKeyCols: []string{"id"},
		Composite:      true,
		PayloadCols: []string{
			"entity_number", "entity_type", "type_of_address", "country_nl", "country_fr", "zipcode",
			"municipality_nl", "municipality_fr", "street_nl", "street_fr", "house_number", "box",
			"extra_address_info", "date_striking_off",
		},
	},
	"activities": {
		Name:           "activities",
		NaturalKeyCols: []string{"id"},
		Composite:      true,
		PayloadCols:    []string{"entity_number", "entity_type", "activity_group", "nace_version", "nace_code", "classification"},
	},
	"contacts": {
		Name:           "contacts",
		NaturalKeyCols: []string{"id"},
		Composite:      true,
		PayloadCols:    []string{"entity_number", "entity_type", "entity_contact", "contact_type", "value"},
	},
	"branches": {
		Name:           "branches",
		NaturalKeyCols: []string{"id"},
		Composite:      true,
		PayloadCols:    []string{"entity_number", "entity_type", "enterprise_number", "start_date"},
	},
}

// StagingTableName returns the companion staging table name for a
// temporal table.
func StagingTableName(table string) string {
	return "stg_" + table
}

// AllColumns returns the natural key columns followed by the payload
// columns followed by the bookkeeping columns, the canonical column
// order used when constructing INSERT statements.
func (t Table) AllColumns() []string {
	cols := make([]string, 0, len(t.NaturalKeyCols)+len(t.PayloadCols)+len(BookkeepingCols))
	cols = append(cols, t.NaturalKeyCols...)
	cols = append(cols, t.PayloadCols...)
	cols = append(cols, BookkeepingCols...)
	return cols
}
