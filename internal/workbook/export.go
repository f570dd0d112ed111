package workbook

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetsync/internal/domain"
)

// Export serializes a table into the format implied by the filename
// extension (.xlsx or .csv). Cells are rendered exactly as a sync would
// send them: nulls blank, dates in month/day/year form.
func Export(t *domain.Table, filename string) ([]byte, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, domain.ErrValidation("nothing to export")
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return WriteXLSX(t)
	case ".csv":
		return WriteCSV(t)
	default:
		return nil, domain.ErrValidation("unsupported export format %q", filename)
	}
}

// WriteXLSX renders the table as a single-sheet workbook.
func WriteXLSX(t *domain.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for ri, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return nil, err
		}
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV renders the table as UTF-8 comma-separated text.
func WriteCSV(t *domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = row[i].String()
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellValue(v domain.Value) interface{} {
	switch v.Kind {
	case domain.KindNull:
		return nil
	case domain.KindNumber:
		return v.Num
	default:
		return v.String()
	}
}
