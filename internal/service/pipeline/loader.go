package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sheetsync/internal/domain"
)

// specFile is the on-disk YAML shape of a pipeline spec. Field names are
// snake_case; unknown keys are rejected so typos surface at load time.
type specFile struct {
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description"`
	Worksheet      string               `yaml:"worksheet"`
	PerMarket      bool                 `yaml:"per_market"`
	CreateRows     int64                `yaml:"create_rows"`
	CreateCols     int64                `yaml:"create_cols"`
	HeaderOnCreate bool                 `yaml:"header_on_create"`
	Columns        []domain.Field       `yaml:"columns"`
	DateField      string               `yaml:"date_field"`
	DatePolicy     string               `yaml:"date_policy"`
	DatePatterns   []domain.DatePattern `yaml:"date_patterns"`
	Derivations    []domain.Derivation  `yaml:"derivations"`
	Rewrites       []domain.TextRewrite `yaml:"rewrites"`
	DropColumns    []string             `yaml:"drop_columns"`
	DropLastRow    bool                 `yaml:"drop_last_row"`
	PruneEmptyRows bool                 `yaml:"prune_empty_rows"`
	PruneEmptyCols bool                 `yaml:"prune_empty_cols"`
	MergeKey       []string             `yaml:"merge_key"`
	SortAsc        string               `yaml:"sort_asc"`
	SortDesc       string               `yaml:"sort_desc"`
	Mode           string               `yaml:"mode"`
	ClearScope     string               `yaml:"clear_scope"`
	StampColumn    string               `yaml:"stamp_column"`
}

func (f specFile) toSpec() domain.PipelineSpec {
	spec := domain.PipelineSpec{
		Name:           f.Name,
		Description:    f.Description,
		Worksheet:      f.Worksheet,
		PerMarket:      f.PerMarket,
		CreateRows:     f.CreateRows,
		CreateCols:     f.CreateCols,
		HeaderOnCreate: f.HeaderOnCreate,
		Schema:         domain.Schema{Fields: f.Columns},
		DateField:      f.DateField,
		DatePolicy:     strings.ToUpper(f.DatePolicy),
		DatePatterns:   f.DatePatterns,
		Derivations:    f.Derivations,
		Rewrites:       f.Rewrites,
		DropColumns:    f.DropColumns,
		DropLastRow:    f.DropLastRow,
		PruneEmptyRows: f.PruneEmptyRows,
		PruneEmptyCols: f.PruneEmptyCols,
		MergeKey:       f.MergeKey,
		SortAsc:        f.SortAsc,
		SortDesc:       f.SortDesc,
		Mode:           strings.ToUpper(f.Mode),
		ClearScope:     strings.ToUpper(f.ClearScope),
		StampColumn:    f.StampColumn,
	}
	if spec.Mode == "" {
		spec.Mode = domain.SyncModeAppend
	}
	if spec.DatePolicy == "" {
		spec.DatePolicy = domain.DatePolicyNone
	}
	for i, d := range spec.Derivations {
		spec.Derivations[i].Method = strings.ToUpper(d.Method)
	}
	for i, fld := range spec.Schema.Fields {
		spec.Schema.Fields[i].Kind = domain.FieldKind(strings.ToLower(string(fld.Kind)))
	}
	return spec
}

// LoadDir reads every .yaml/.yml file in dir into the registry. A missing
// directory is not an error (the YAML catalogue is optional). Files load in
// name order, so a later file overrides an earlier one of the same pipeline.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("spec directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified spec files
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var f specFile
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		if err := r.Register(f.toSpec()); err != nil {
			return fmt.Errorf("spec %s: %w", path, err)
		}
	}
	return nil
}
