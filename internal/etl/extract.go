package etl

import (
	"regexp"
	"strings"
	"time"

	"sheetsync/internal/domain"
)

// DefaultDatePatterns is the standard filename date matcher list, tried in
// order with first match winning. A matched pattern that fails to parse
// falls through to the next one.
var DefaultDatePatterns = []domain.DatePattern{
	{Pattern: `SA_Campaign_List_(\d{8})_\d{8}_.*\.xlsx`, Layout: "20060102"},
	{Pattern: `(\d{8})`, Layout: "20060102"},
	{Pattern: `(\d{2}_\d{2}_\d{4})`, Layout: "02_01_2006"},
	{Pattern: `(\d{4}-\d{2}-\d{2})`, Layout: "2006-01-02"},
}

var (
	asinPrefixed = regexp.MustCompile(`B[A-Z0-9]{9}`)
	asinAnyRun   = regexp.MustCompile(`[A-Z0-9]{10}`)
	nonAlnum     = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ExtractDate scans a filename with the given patterns (DefaultDatePatterns
// when empty) and returns the first parseable date. The second return is
// false when no pattern yields a date.
func ExtractDate(filename string, patterns []domain.DatePattern) (time.Time, bool) {
	if len(patterns) == 0 {
		patterns = DefaultDatePatterns
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(filename)
		if m == nil || len(m) < 2 {
			continue
		}
		if t, err := time.Parse(p.Layout, m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DerivePrefix takes the first 10 characters of the text, uppercased.
// Shorter text is returned whole, uppercased; there is no padding.
func DerivePrefix(s string) string {
	r := []rune(s)
	if len(r) > 10 {
		r = r[:10]
	}
	return strings.ToUpper(string(r))
}

// DeriveASIN searches free text for an ASIN: a "B" followed by 9
// alphanumerics, then any 10 consecutive alphanumerics, then the first 10
// characters after removing every non-alphanumeric. When the cleaned text
// is shorter than 10 characters the input is returned unchanged.
func DeriveASIN(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	upper := strings.ToUpper(trimmed)
	if m := asinPrefixed.FindString(upper); m != "" {
		return m
	}
	if m := asinAnyRun.FindString(upper); m != "" {
		return m
	}
	clean := nonAlnum.ReplaceAllString(trimmed, "")
	if len(clean) >= 10 {
		return strings.ToUpper(clean[:10])
	}
	return trimmed
}

// Derive applies a derivation rule to one cell.
func Derive(v domain.Value, method string) domain.Value {
	if v.IsNull() {
		return v
	}
	switch method {
	case domain.DeriveMethodPrefix:
		return domain.TextValue(DerivePrefix(v.String()))
	case domain.DeriveMethodASINSearch:
		return domain.TextValue(DeriveASIN(v.String()))
	}
	return v
}

// ApplyRewrites replaces substrings in one column's text cells, in declared
// order. Non-text cells are left alone.
func ApplyRewrites(t *domain.Table, rw domain.TextRewrite) {
	ci := t.ColumnIndex(rw.Column)
	if ci < 0 {
		return
	}
	for _, row := range t.Rows {
		if row[ci].Kind != domain.KindText {
			continue
		}
		s := row[ci].Str
		for _, p := range rw.Pairs {
			s = strings.ReplaceAll(s, p.Old, p.New)
		}
		row[ci] = domain.TextValue(s)
	}
}
