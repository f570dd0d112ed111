package sync

import (
	"fmt"

	"sheetsync/internal/domain"
)

// serializeValue renders one cell for the remote API: nulls become empty
// strings, numbers stay numeric, dates take month/day/year form without
// zero padding.
func serializeValue(v domain.Value) interface{} {
	switch v.Kind {
	case domain.KindNull:
		return ""
	case domain.KindNumber:
		return v.Num
	default:
		return v.String()
	}
}

func serializeRows(t *domain.Table) [][]interface{} {
	out := make([][]interface{}, len(t.Rows))
	for ri, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for ci, v := range row {
			cells[ci] = serializeValue(v)
		}
		out[ri] = cells
	}
	return out
}

// cellString renders a remote cell value read back from the API.
func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
