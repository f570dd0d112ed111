package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{16, "P"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{0, "A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetter(tt.col), "col %d", tt.col)
	}
}

func TestRangeRef(t *testing.T) {
	assert.Equal(t, "'Raw_SB_H2_2025_US'!A2:U501", RangeRef("Raw_SB_H2_2025_US", 1, 2, 21, 501))
	assert.Equal(t, "'Dim_Launching'!A1:P1", RangeRef("Dim_Launching", 1, 1, 16, 1))
}

func TestTitleRefQuoting(t *testing.T) {
	assert.Equal(t, "'Plain'", TitleRef("Plain"))
	assert.Equal(t, "'It''s raw'", TitleRef("It's raw"))
}

func TestColumnRef(t *testing.T) {
	assert.Equal(t, "'FBA Stock_US'!A:A", ColumnRef("FBA Stock_US", 1))
}
