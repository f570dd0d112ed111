// Package workbook reads uploaded tabular files into tables and writes
// tables back out as local artifacts. Readers are tolerant: encodings fall
// back from UTF-8 to Windows-1252 to ISO 8859-1, tab-separated text falls
// back to comma-separated, and ragged rows are padded to the header width.
package workbook

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"sheetsync/internal/domain"
)

// Read parses file bytes into a table, dispatching on the filename
// extension. The first row becomes the header. Errors are file-level
// rejection reasons.
func Read(filename string, data []byte) (*domain.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(data)
	case ".xls":
		return nil, domain.ErrValidation("legacy .xls workbooks are not supported, re-export %q as .xlsx", filename)
	case ".csv":
		return readDelimited(data, ',')
	case ".txt":
		return readTXT(data)
	default:
		return nil, domain.ErrValidation("unsupported file format %q", filename)
	}
}

func readXLSX(data []byte) (*domain.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrValidation("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrValidation("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.ErrValidation("read sheet %q: %v", sheets[0], err)
	}
	return tableFromRecords(rows)
}

func readDelimited(data []byte, comma rune) (*domain.Table, error) {
	text := decodeText(data)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.ErrValidation("parse delimited file: %v", err)
		}
		records = append(records, rec)
	}
	return tableFromRecords(records)
}

// readTXT tries tab separation first. When that yields a single column and
// the content carries commas, it reparses comma-separated.
func readTXT(data []byte) (*domain.Table, error) {
	t, err := readDelimited(data, '\t')
	if err == nil && len(t.Columns) <= 1 && strings.ContainsRune(decodeText(data), ',') {
		if ct, cerr := readDelimited(data, ','); cerr == nil && len(ct.Columns) > len(t.Columns) {
			return ct, nil
		}
	}
	return t, err
}

// decodeText returns the bytes as UTF-8, decoding through Windows-1252 and
// then ISO 8859-1 when the content is not valid UTF-8.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if utf8.Valid(data) {
		return string(data)
	}
	if out, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		return string(out)
	}
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out)
}

func tableFromRecords(records [][]string) (*domain.Table, error) {
	for len(records) > 0 && blankRecord(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, domain.ErrValidation("file has no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := domain.NewTable(header)
	for _, rec := range records[1:] {
		row := make([]domain.Value, len(rec))
		for i, cell := range rec {
			row[i] = parseCell(cell)
		}
		t.AppendRow(row)
	}
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCell types a raw cell: empty becomes null, parseable numbers become
// numbers, everything else stays text. NaN and infinities stay text so the
// null sentinel handling sees them.
func parseCell(s string) domain.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NullValue()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return domain.NumberValue(f)
	}
	return domain.TextValue(s)
}
