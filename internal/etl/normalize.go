package etl

import (
	"strings"

	"sheetsync/internal/domain"
)

// Normalize maps a raw table onto a canonical schema and coerces every cell
// by its field's rule. Missing source columns become null columns; unmapped
// raw columns are dropped; output column order is always the canonical
// order. The input is not modified.
func Normalize(raw *domain.Table, schema domain.Schema) *domain.Table {
	mapping := matchColumns(raw.Columns, schema)
	out := domain.NewTable(schema.Columns())
	for _, row := range raw.Rows {
		nr := make([]domain.Value, schema.Len())
		for fi, f := range schema.Fields {
			var v domain.Value
			if ci := mapping[fi]; ci >= 0 {
				v = row[ci]
			}
			nr[fi] = Coerce(v, f.Kind)
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// matchColumns resolves each canonical field to a raw column index (-1 when
// unmatched). For every field the raw headers are scanned twice: first for
// an exact case-insensitive name match, then against the field's alias
// rules. First match wins.
func matchColumns(headers []string, schema domain.Schema) []int {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}
	mapping := make([]int, schema.Len())
	for fi, f := range schema.Fields {
		mapping[fi] = -1
		want := strings.ToLower(strings.TrimSpace(f.Name))
		for hi, h := range lowered {
			if h == want {
				mapping[fi] = hi
				break
			}
		}
		if mapping[fi] >= 0 {
			continue
		}
		for _, rule := range f.Aliases {
			for hi, h := range lowered {
				if aliasMatches(rule, h) {
					mapping[fi] = hi
					break
				}
			}
			if mapping[fi] >= 0 {
				break
			}
		}
	}
	return mapping
}

func aliasMatches(rule domain.AliasRule, header string) bool {
	for _, tok := range rule.All {
		if !strings.Contains(header, tok) {
			return false
		}
	}
	if len(rule.Any) == 0 {
		return len(rule.All) > 0
	}
	for _, tok := range rule.Any {
		if strings.Contains(header, tok) {
			return true
		}
	}
	return false
}
