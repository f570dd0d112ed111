package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnLetter converts a 1-based column index to its letter form (1 = A,
// 27 = AA). Indexes below 1 fall back to A.
func ColumnLetter(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return "A"
	}
	return name
}

// TitleRef returns the quoted A1 reference covering a whole worksheet.
// Single quotes inside the title are doubled.
func TitleRef(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// RangeRef builds a quoted A1 range like 'Sheet'!A2:U501 from 1-based
// coordinates.
func RangeRef(title string, startCol, startRow, endCol, endRow int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", TitleRef(title), ColumnLetter(startCol), startRow, ColumnLetter(endCol), endRow)
}

// ColumnRef builds a quoted single-column range like 'Sheet'!A:A.
func ColumnRef(title string, col int) string {
	letter := ColumnLetter(col)
	return fmt.Sprintf("%s!%s:%s", TitleRef(title), letter, letter)
}
