package etl

import (
	"sort"

	"github.com/zeebo/xxh3"

	"sheetsync/internal/domain"
)

// Merge concatenates normalized tables row-wise, deduplicates by the merge
// key (last occurrence wins, in concatenation order), and sorts by sortAsc
// ascending then sortDesc descending when those columns exist. Tables that
// are empty or entirely null are discarded first. Columns are taken from
// the first surviving table; later tables are assumed to share them, and
// their rows are padded or truncated to that width.
func Merge(tables []*domain.Table, mergeKey []string, sortAsc, sortDesc string) *domain.Table {
	var kept []*domain.Table
	for _, t := range tables {
		if t != nil && !t.IsEmpty() {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	out := domain.NewTable(kept[0].Columns)
	for _, t := range kept {
		for _, row := range t.Rows {
			out.AppendRow(row)
		}
	}
	if len(mergeKey) > 0 {
		out = dedupe(out, mergeKey)
	}
	sortRows(out, sortAsc, sortDesc)
	return out
}

// dedupe keeps, for each merge-key value, only the last occurrence, at the
// position of that last occurrence. Rows whose key columns are absent from
// the table are all kept.
func dedupe(t *domain.Table, mergeKey []string) *domain.Table {
	idx := make([]int, 0, len(mergeKey))
	for _, k := range mergeKey {
		ci := t.ColumnIndex(k)
		if ci < 0 {
			return t
		}
		idx = append(idx, ci)
	}
	last := make(map[xxh3.Uint128]int, len(t.Rows))
	keys := make([]xxh3.Uint128, len(t.Rows))
	for ri, row := range t.Rows {
		k := hashKey(row, idx)
		keys[ri] = k
		last[k] = ri
	}
	out := domain.NewTable(t.Columns)
	for ri, row := range t.Rows {
		if last[keys[ri]] == ri {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// hashKey hashes the key tuple with a kind tag and separator per cell so
// that ("ab","c") and ("a","bc") produce distinct keys.
func hashKey(row []domain.Value, idx []int) xxh3.Uint128 {
	var buf []byte
	for _, ci := range idx {
		v := row[ci]
		buf = append(buf, byte(v.Kind))
		buf = append(buf, v.String()...)
		buf = append(buf, 0x1f)
	}
	return xxh3.Hash128(buf)
}

func sortRows(t *domain.Table, sortAsc, sortDesc string) {
	ai := -1
	if sortAsc != "" {
		ai = t.ColumnIndex(sortAsc)
	}
	if ai < 0 {
		return
	}
	di := -1
	if sortDesc != "" {
		di = t.ColumnIndex(sortDesc)
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		if c := t.Rows[i][ai].Compare(t.Rows[j][ai]); c != 0 {
			return c < 0
		}
		if di >= 0 {
			a, b := t.Rows[i][di], t.Rows[j][di]
			// Descending, nulls still last.
			if a.IsNull() || b.IsNull() {
				return !a.IsNull() && b.IsNull()
			}
			return a.Compare(b) > 0
		}
		return false
	})
}
