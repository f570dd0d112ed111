package domain

// FieldKind selects the coercion rule applied to a canonical field's cells.
type FieldKind string

const (
	FieldAuto     FieldKind = "auto"     // keep the value as read
	FieldText     FieldKind = "text"     // force string form
	FieldInt      FieldKind = "int"      // strip thousand separators, truncate
	FieldFloat    FieldKind = "float"    // strip percent signs and separators
	FieldCurrency FieldKind = "currency" // strip currency symbols and separators
	FieldDate     FieldKind = "date"     // parse date strings
)

// AliasRule matches a raw header by token containment: every token in All
// must appear in the lowercased header, and at least one token in Any when
// Any is non-empty. Tokens are lowercase; non-Latin look-alikes (the
// Cyrillic "с" in "сost") are listed as Any variants.
type AliasRule struct {
	All []string `yaml:"all"`
	Any []string `yaml:"any,omitempty"`
}

// Field is one canonical column: its exact header name, coercion kind, and
// optional alias rules tried when no raw header matches the name exactly.
type Field struct {
	Name    string      `yaml:"name"`
	Kind    FieldKind   `yaml:"kind,omitempty"`
	Aliases []AliasRule `yaml:"aliases,omitempty"`
}

// Schema is the ordered canonical column list of a fixed-schema pipeline.
// An empty schema means the pipeline runs in passthrough mode.
type Schema struct {
	Fields []Field
}

// Columns returns the canonical column names in order.
func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Len returns the number of canonical fields.
func (s Schema) Len() int { return len(s.Fields) }

// Fixed reports whether the schema prescribes columns (false = passthrough).
func (s Schema) Fixed() bool { return len(s.Fields) > 0 }
