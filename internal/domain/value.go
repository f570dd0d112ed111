package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Kind discriminates the typed cell values a table can hold.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindDate
)

// Value is one typed cell. Exactly one of Str, Num, Time is meaningful,
// selected by Kind; the zero Value is null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// NullValue returns the null cell.
func NullValue() Value { return Value{} }

// TextValue returns a text cell.
func TextValue(s string) Value { return Value{Kind: KindText, Str: s} }

// NumberValue returns a numeric cell.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// DateValue returns a date cell truncated to UTC midnight.
func DateValue(t time.Time) Value {
	return Value{Kind: KindDate, Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the cell in its canonical display form: empty for null,
// month/day/year without zero padding for dates, shortest round-trip
// representation for numbers.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindText:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return fmt.Sprintf("%d/%d/%d", int(v.Time.Month()), v.Time.Day(), v.Time.Year())
	}
	return ""
}

// Compare orders two cells: null sorts after everything, same-kind cells
// compare within their kind, mixed kinds fall back to display form.
func (v Value) Compare(o Value) int {
	if v.IsNull() || o.IsNull() {
		switch {
		case v.IsNull() && o.IsNull():
			return 0
		case v.IsNull():
			return 1
		default:
			return -1
		}
	}
	if v.Kind == o.Kind {
		switch v.Kind {
		case KindNumber:
			switch {
			case v.Num < o.Num:
				return -1
			case v.Num > o.Num:
				return 1
			}
			return 0
		case KindDate:
			switch {
			case v.Time.Before(o.Time):
				return -1
			case v.Time.After(o.Time):
				return 1
			}
			return 0
		}
	}
	vs, os := v.String(), o.String()
	switch {
	case vs < os:
		return -1
	case vs > os:
		return 1
	}
	return 0
}
