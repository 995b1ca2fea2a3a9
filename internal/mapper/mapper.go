// Package mapper implements the Column & Key Mapper: pure, deterministic
// transforms from raw CSV rows to the DB-native column names, date
// formats, entity types, and composite IDs the temporal schema expects.
// It performs no I/O.
package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// idSeparator joins composite-ID components. Concatenation doesn't
// require a specific byte; any fixed separator that cannot itself
// appear in a component works. Entity numbers, type codes, and
// language codes here are restricted to digits/dots/letters, so "|"
// is safe.
const idSeparator = "|"

// columnNames maps canonical CSV TitleCase column names to DB snake_case
// column names. Unknown columns are rejected by callers, not silently
// ignored, per the design notes on narrowing dynamic typing at the CSV
// boundary.
var columnNames = map[string]string{
	"EnterpriseNumber":     "enterprise_number",
	"EstablishmentNumber":  "establishment_number",
	"Status":               "status",
	"JuridicalSituation":   "juridical_situation",
	"TypeOfEnterprise":     "type_of_enterprise",
	"JuridicalForm":        "juridical_form",
	"JuridicalFormCAC":     "juridical_form_cac",
	"StartDate":            "start_date",
	"EntityNumber":         "entity_number",
	"TypeOfAddress":        "type_of_address",
	"CountryNL":            "country_nl",
	"CountryFR":            "country_fr",
	"Zipcode":              "zipcode",
	"MunicipalityNL":       "municipality_nl",
	"MunicipalityFR":       "municipality_fr",
	"StreetNL":             "street_nl",
	"StreetFR":             "street_fr",
	"HouseNumber":          "house_number",
	"Box":                  "box",
	"ExtraAddressInfo":     "extra_address_info",
	"DateStrikingOff":      "date_striking_off",
	"Language":             "language",
	"TypeOfDenomination":   "type_of_denomination",
	"Denomination":         "denomination",
	"ActivityGroup":        "activity_group",
	"NaceVersion":          "nace_version",
	"NaceCode":             "nace_code",
	"Classification":       "classification",
	"EntityContact":        "entity_contact",
	"ContactType":          "contact_type",
	"Value":                "value",
}

// tableNames maps canonical CSV singular table names to DB plural table
// names.
var tableNames = map[string]string{
	"enterprise":    "enterprises",
	"establishment": "establishments",
	"denomination":  "denominations",
	"address":       "addresses",
	"activity":      "activities",
	"contact":       "contacts",
	"branch":        "branches",
}

var dateValuePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// ColumnName translates a CSV TitleCase column name to its DB snake_case
// equivalent. The second return value is false for columns the mapper
// does not recognize, which callers must reject rather than pass through.
func ColumnName(csvName string) (string, bool) {
	name, ok := columnNames[csvName]
	return name, ok
}

// TableName translates a CSV singular table name to its DB plural table
// name.
func TableName(csvName string) (string, bool) {
	name, ok := tableNames[csvName]
	return name, ok
}

// IsDateColumn reports whether a DB column name should be treated as a
// date column eligible for DD-MM-YYYY conversion.
func IsDateColumn(dbColumnName string) bool {
	return strings.Contains(strings.ToLower(dbColumnName), "date")
}

// ConvertDate rewrites a DD-MM-YYYY value to YYYY-MM-DD. Values not
// matching the expected pattern are returned unchanged, since the mapper
// only converts columns it can recognize as dates by name, not by value
// sniffing beyond this pattern.
func ConvertDate(value string) string {
	if !dateValuePattern.MatchString(value) {
		return value
	}
	parts := strings.Split(value, "-")
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// EntityType infers entity_type from the shape of an entity number: a
// single leading digit followed by a non-digit separator denotes an
// establishment; anything else is an enterprise.
func EntityType(entityNumber string) string {
	if len(entityNumber) >= 2 && isDigit(entityNumber[0]) && !isDigit(entityNumber[1]) {
		return "establishment"
	}
	return "enterprise"
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// ComposeID concatenates composite-ID components with a fixed, reserved
// separator. It is a pure function of its inputs: the same components
// always produce the same ID, and changing any component produces a
// different ID.
func ComposeID(parts ...string) string {
	return strings.Join(parts, idSeparator)
}

// ShortHash returns the 8-hex-character prefix of the SHA-256 digest of
// s, used to bound denomination composite IDs. See the design notes on
// widening this to 16 characters if collision risk ever needs to be
// driven down further.
func ShortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
