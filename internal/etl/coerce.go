// Package etl implements the per-file transform chain and the batch merge:
// header mapping onto canonical schemas, field coercion, filename date and
// identifier extraction, and last-wins deduplication.
package etl

import (
	"strconv"
	"strings"
	"time"

	"sheetsync/internal/domain"
)

// Sentinels treated as null by every numeric rule, checked after stripping.
var nullSentinels = map[string]struct{}{
	"":    {},
	"nan": {},
	"NaN": {},
	"--":  {},
	"N/A": {},
}

// Strip sets per numeric rule: currency symbols, percent signs, thousand
// separators.
const (
	currencyStrip = "C$,"
	floatStrip    = "%,"
	intStrip      = ","
)

// Date string layouts accepted by the date rule and by delete-from-date
// partitioning, tried in order.
var dateLayouts = []string{"1/2/2006", "2006-01-02"}

// Coerce applies a field kind's rule to one cell. Coercion never fails: a
// cell that does not satisfy its rule becomes null.
func Coerce(v domain.Value, kind domain.FieldKind) domain.Value {
	switch kind {
	case domain.FieldText:
		if v.IsNull() {
			return v
		}
		return domain.TextValue(v.String())
	case domain.FieldCurrency:
		return coerceNumeric(v, currencyStrip, false)
	case domain.FieldFloat:
		return coerceNumeric(v, floatStrip, false)
	case domain.FieldInt:
		return coerceNumeric(v, intStrip, true)
	case domain.FieldDate:
		return coerceDate(v)
	default: // FieldAuto and unknown kinds keep the value as read
		return v
	}
}

func coerceNumeric(v domain.Value, strip string, truncate bool) domain.Value {
	switch v.Kind {
	case domain.KindNull:
		return v
	case domain.KindNumber:
		if truncate {
			return domain.NumberValue(float64(int64(v.Num)))
		}
		return v
	case domain.KindDate:
		return domain.NullValue()
	}
	s := strings.TrimSpace(v.Str)
	var b strings.Builder
	for _, r := range s {
		if !strings.ContainsRune(strip, r) {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if _, null := nullSentinels[s]; null {
		return domain.NullValue()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.NullValue()
	}
	if truncate {
		f = float64(int64(f))
	}
	return domain.NumberValue(f)
}

func coerceDate(v domain.Value) domain.Value {
	switch v.Kind {
	case domain.KindDate:
		return v
	case domain.KindText:
		if t, ok := ParseCellDate(v.Str); ok {
			return domain.DateValue(t)
		}
	}
	return domain.NullValue()
}

// ParseCellDate parses a date cell string against the supported layouts.
func ParseCellDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
