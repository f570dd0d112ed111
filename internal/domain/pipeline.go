package domain

import (
	"fmt"
	"strings"
)

// Sync modes.
const (
	SyncModeAppend  = "APPEND"
	SyncModeReplace = "REPLACE"
)

// Date policies for "no date found in the filename". Each pipeline picks
// one explicitly; there is no universal fallback.
const (
	DatePolicyNone   = "NONE"   // pipeline does not extract dates
	DatePolicyNull   = "NULL"   // absent date stays null
	DatePolicyToday  = "TODAY"  // absent date defaults to the current date
	DatePolicyReject = "REJECT" // absent date rejects the file
)

// Clear scopes for replace mode.
const (
	ClearScopeSheet   = "SHEET"   // clear the whole worksheet
	ClearScopeColumns = "COLUMNS" // clear only the canonical columns' region
)

// Derivation methods.
const (
	DeriveMethodPrefix     = "PREFIX"      // first 10 characters, uppercased
	DeriveMethodASINSearch = "ASIN_SEARCH" // B+9 run, any 10-run, cleaned prefix
)

// DatePattern is one filename date matcher: a regular expression whose first
// capture group is parsed with the Go reference layout.
type DatePattern struct {
	Pattern string `yaml:"pattern"`
	Layout  string `yaml:"layout"`
}

// Derivation computes a canonical column from a raw text column before
// normalization. A required derivation whose source column is missing
// rejects the file; an optional one fills the target with nulls.
type Derivation struct {
	Target   string `yaml:"target"`
	Source   string `yaml:"source"`
	Method   string `yaml:"method"`
	Required bool   `yaml:"required,omitempty"`
}

// RewritePair is one ordered substring replacement.
type RewritePair struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// TextRewrite applies ordered substring replacements to one raw column.
type TextRewrite struct {
	Column string        `yaml:"column"`
	Pairs  []RewritePair `yaml:"pairs"`
}

// PipelineSpec declares everything a pipeline run needs: where the data
// lands, how files are interpreted, and how the batch is merged and synced.
type PipelineSpec struct {
	Name        string
	Description string

	// Worksheet is the target title; per-market pipelines suffix it with
	// "_<market>". CreateRows/CreateCols size the worksheet when it has to
	// be created; HeaderOnCreate writes the canonical header into row 1 of
	// a freshly created sheet.
	Worksheet      string
	PerMarket      bool
	CreateRows     int64
	CreateCols     int64
	HeaderOnCreate bool

	// Schema is the canonical column list; empty means passthrough mode
	// (the file's own pruned header is the canonical schema).
	Schema Schema

	DateField    string
	DatePolicy   string
	DatePatterns []DatePattern // empty = default pattern list

	Derivations []Derivation
	Rewrites    []TextRewrite
	DropColumns []string
	DropLastRow bool

	PruneEmptyRows bool
	PruneEmptyCols bool

	MergeKey []string
	SortAsc  string
	SortDesc string

	Mode       string
	ClearScope string // replace mode only

	// StampColumn, when set, is appended to every row with the run
	// timestamp in "2006-01-02 15:04:05" form.
	StampColumn string
}

// WorksheetTitle resolves the target worksheet for a market. Per-market
// pipelines require a non-empty market code.
func (s PipelineSpec) WorksheetTitle(market string) (string, error) {
	if !s.PerMarket {
		return s.Worksheet, nil
	}
	market = strings.TrimSpace(market)
	if market == "" {
		return "", ErrValidation("pipeline %q requires a market", s.Name)
	}
	return fmt.Sprintf("%s_%s", s.Worksheet, market), nil
}

// Validate checks internal consistency of the spec.
func (s PipelineSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrValidation("pipeline name is required")
	}
	if strings.TrimSpace(s.Worksheet) == "" {
		return ErrValidation("pipeline %q: worksheet is required", s.Name)
	}
	switch s.Mode {
	case SyncModeAppend:
	case SyncModeReplace:
		if s.ClearScope != ClearScopeSheet && s.ClearScope != ClearScopeColumns {
			return ErrValidation("pipeline %q: replace mode requires a clear scope", s.Name)
		}
		if s.ClearScope == ClearScopeColumns && !s.Schema.Fixed() {
			return ErrValidation("pipeline %q: column clear scope requires a fixed schema", s.Name)
		}
	default:
		return ErrValidation("pipeline %q: unknown sync mode %q", s.Name, s.Mode)
	}
	switch s.DatePolicy {
	case DatePolicyNone, DatePolicyNull, DatePolicyToday, DatePolicyReject:
	default:
		return ErrValidation("pipeline %q: unknown date policy %q", s.Name, s.DatePolicy)
	}
	if s.DatePolicy != DatePolicyNone && strings.TrimSpace(s.DateField) == "" {
		return ErrValidation("pipeline %q: date policy %s requires a date field", s.Name, s.DatePolicy)
	}
	seen := make(map[string]bool, len(s.Schema.Fields))
	for _, f := range s.Schema.Fields {
		key := strings.ToLower(f.Name)
		if seen[key] {
			return ErrValidation("pipeline %q: duplicate canonical column %q", s.Name, f.Name)
		}
		seen[key] = true
		switch f.Kind {
		case "", FieldAuto, FieldText, FieldInt, FieldFloat, FieldCurrency, FieldDate:
		default:
			return ErrValidation("pipeline %q: unknown field kind %q for column %q", s.Name, f.Kind, f.Name)
		}
	}
	if s.Schema.Fixed() {
		for _, k := range s.MergeKey {
			if !seen[strings.ToLower(k)] {
				return ErrValidation("pipeline %q: merge key %q is not a canonical column", s.Name, k)
			}
		}
	}
	for _, d := range s.Derivations {
		switch d.Method {
		case DeriveMethodPrefix, DeriveMethodASINSearch:
		default:
			return ErrValidation("pipeline %q: unknown derivation method %q", s.Name, d.Method)
		}
	}
	return nil
}
