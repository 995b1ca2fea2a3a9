// Package resolver implements the Primary-Name Resolver: after a job's
// batches complete, it picks a preferred denomination for each
// newly-inserted enterprise and denormalizes it onto the enterprise
// row for fast display.
package resolver

import (
	"context"
	"database/sql"
	"fmt"
)

// legalTypeCode is the denomination type code for an entity's legal
// name, preferred over any other ("commercial") denomination type.
const legalTypeCode = "001"

// languagePriority ranks denomination languages for the primary name:
// Dutch, French, unknown, German, English. Lower index wins.
var languagePriority = map[string]int{
	"2": 0, // Dutch
	"1": 1, // French
	"0": 2, // unknown
	"":  2,
	"3": 3, // German
	"4": 4, // English
}

const (
	langDutch  = "2"
	langFrench = "1"
	langGerman = "3"
)

// Resolve runs once per job after all its batches complete. For every
// enterprise this job inserted whose primary_name still equals its
// enterprise_number (the insert-time placeholder), it picks the
// best-ranked current denomination and overwrites the name fields. It
// returns the number of enterprise rows updated.
func Resolve(ctx context.Context, conn *sql.Conn, jobID string, extractNumber int64) (int64, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT enterprise_number FROM enterprises
		WHERE _is_current = true AND _extract_number = ? AND primary_name = enterprise_number
	`, extractNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to find unresolved enterprises: %w", err)
	}
	var enterpriseNumbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan enterprise number: %w", err)
		}
		enterpriseNumbers = append(enterpriseNumbers, n)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating unresolved enterprises: %w", err)
	}

	var updated int64
	for _, enterpriseNumber := range enterpriseNumbers {
		ok, err := resolveOne(ctx, conn, enterpriseNumber)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func resolveOne(ctx context.Context, conn *sql.Conn, enterpriseNumber string) (bool, error) {
	best, ok, err := bestDenomination(ctx, conn, enterpriseNumber, "")
	if err != nil || !ok {
		return false, err
	}

	nl, _, err := bestDenomination(ctx, conn, enterpriseNumber, langDutch)
	if err != nil {
		return false, err
	}
	fr, _, err := bestDenomination(ctx, conn, enterpriseNumber, langFrench)
	if err != nil {
		return false, err
	}
	de, _, err := bestDenomination(ctx, conn, enterpriseNumber, langGerman)
	if err != nil {
		return false, err
	}

	_, err = conn.ExecContext(ctx, `
		UPDATE enterprises
		SET primary_name = ?, primary_name_language = ?, primary_name_nl = ?, primary_name_fr = ?, primary_name_de = ?
		WHERE enterprise_number = ? AND _is_current = true
	`, best.denomination, best.language, nl.denomination, fr.denomination, de.denomination, enterpriseNumber)
	if err != nil {
		return false, fmt.Errorf("failed to update primary name for %s: %w", enterpriseNumber, err)
	}
	return true, nil
}

type denomination struct {
	denomination string
	language     string
	typeCode     string
}

// bestDenomination picks the highest-priority current denomination for
// an entity, optionally restricted to one language. Priority: legal
// name (type 001) before any other type, then language preference
// Dutch > French > unknown > German > English.
func bestDenomination(ctx context.Context, conn *sql.Conn, entityNumber string, onlyLanguage string) (denomination, bool, error) {
	query := `
		SELECT type_of_denomination, language, denomination
		FROM denominations
		WHERE entity_number = ? AND _is_current = true
	`
	args := []any{entityNumber}
	if onlyLanguage != "" {
		query += " AND language = ?"
		args = append(args, onlyLanguage)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return denomination{}, false, fmt.Errorf("failed to query denominations for %s: %w", entityNumber, err)
	}
	defer rows.Close()

	var candidates []denomination
	for rows.Next() {
		var d denomination
		if err := rows.Scan(&d.typeCode, &d.language, &d.denomination); err != nil {
			return denomination{}, false, fmt.Errorf("failed to scan denomination: %w", err)
		}
		candidates = append(candidates, d)
	}
	if err := rows.Err(); err != nil {
		return denomination{}, false, fmt.Errorf("error iterating denominations: %w", err)
	}
	if len(candidates) == 0 {
		return denomination{}, false, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if rank(c) < rank(best) {
			best = c
		}
	}
	return best, true, nil
}

// rank gives legal names absolute priority, then breaks ties by
// language preference.
func rank(d denomination) int {
	typeRank := 1
	if d.typeCode == legalTypeCode {
		typeRank = 0
	}
	langRank, ok := languagePriority[d.language]
	if !ok {
		langRank = len(languagePriority)
	}
	return typeRank*100 + langRank
}
