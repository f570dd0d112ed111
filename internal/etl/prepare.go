package etl

import (
	"strings"
	"time"

	"sheetsync/internal/domain"
)

// PrepareFile runs one raw table through a pipeline's per-file transform
// chain: pruning, column drops, text rewrites, identifier derivation, the
// filename date, then schema normalization (or passthrough). The returned
// error is a file-level rejection reason.
func PrepareFile(raw *domain.Table, filename string, spec domain.PipelineSpec, now time.Time) (*domain.Table, error) {
	t := raw
	if spec.PruneEmptyRows {
		t = t.DropEmptyRows()
	}
	if spec.PruneEmptyCols {
		t = t.DropEmptyColumns()
	}
	if spec.DropLastRow {
		t = t.DropLastRow()
	}
	t = dropColumns(t, spec.DropColumns)
	for _, rw := range spec.Rewrites {
		ApplyRewrites(t, rw)
	}

	derived := make(map[string][]domain.Value, len(spec.Derivations))
	for _, d := range spec.Derivations {
		ci := t.ColumnIndex(d.Source)
		if ci < 0 {
			if d.Required {
				return nil, domain.ErrValidation("column %q not found", d.Source)
			}
			derived[strings.ToLower(d.Target)] = make([]domain.Value, len(t.Rows))
			continue
		}
		col := make([]domain.Value, len(t.Rows))
		for ri, row := range t.Rows {
			col[ri] = Derive(row[ci], d.Method)
		}
		derived[strings.ToLower(d.Target)] = col
	}

	var fileDate domain.Value
	if spec.DatePolicy != domain.DatePolicyNone {
		if d, ok := ExtractDate(filename, spec.DatePatterns); ok {
			fileDate = domain.DateValue(d)
		} else {
			switch spec.DatePolicy {
			case domain.DatePolicyToday:
				fileDate = domain.DateValue(now)
			case domain.DatePolicyReject:
				return nil, domain.ErrValidation("no date found in filename %q", filename)
			}
		}
	}

	if !spec.Schema.Fixed() {
		out := t
		if spec.StampColumn != "" {
			out = stampColumn(out, spec.StampColumn, now)
		}
		return out, nil
	}

	// Derived and date columns override whatever the raw table carried
	// under the same canonical name.
	out := Normalize(t, spec.Schema)
	for fi, f := range spec.Schema.Fields {
		if col, ok := derived[strings.ToLower(f.Name)]; ok {
			for ri := range out.Rows {
				out.Rows[ri][fi] = Coerce(col[ri], f.Kind)
			}
		}
		// A filename date overrides any raw column of the same name; when
		// extraction found nothing the raw column's values survive.
		if !fileDate.IsNull() && strings.EqualFold(f.Name, spec.DateField) {
			for ri := range out.Rows {
				out.Rows[ri][fi] = fileDate
			}
		}
	}
	if spec.StampColumn != "" {
		out = stampColumn(out, spec.StampColumn, now)
	}
	return out, nil
}

func dropColumns(t *domain.Table, names []string) *domain.Table {
	if len(names) == 0 {
		return t
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ToLower(strings.TrimSpace(n))] = true
	}
	keep := make([]int, 0, len(t.Columns))
	for ci, c := range t.Columns {
		if !drop[strings.ToLower(strings.TrimSpace(c))] {
			keep = append(keep, ci)
		}
	}
	if len(keep) == len(t.Columns) {
		return t
	}
	out := &domain.Table{Columns: make([]string, len(keep))}
	for i, ci := range keep {
		out.Columns[i] = t.Columns[ci]
	}
	out.Rows = make([][]domain.Value, len(t.Rows))
	for ri, row := range t.Rows {
		nr := make([]domain.Value, len(keep))
		for i, ci := range keep {
			nr[i] = row[ci]
		}
		out.Rows[ri] = nr
	}
	return out
}

func stampColumn(t *domain.Table, name string, now time.Time) *domain.Table {
	stamp := domain.TextValue(now.Format("2006-01-02 15:04:05"))
	out := &domain.Table{Columns: append(append([]string(nil), t.Columns...), name)}
	out.Rows = make([][]domain.Value, len(t.Rows))
	for ri, row := range t.Rows {
		out.Rows[ri] = append(append([]domain.Value(nil), row...), stamp)
	}
	return out
}
