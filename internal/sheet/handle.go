// Package sheet wraps the Google Sheets API behind a per-worksheet handle:
// get-or-create by title, dimension growth, counting, and range reads,
// writes and clears. Every API failure surfaces as a RemoteError.
package sheet

import (
	"context"
	"strings"

	"google.golang.org/api/sheets/v4"

	"sheetsync/internal/domain"
)

// Value input options for range writes.
const (
	InputRaw         = "RAW"
	InputUserEntered = "USER_ENTERED"
)

// Worksheet grid defaults applied when a pipeline does not size its target.
const (
	DefaultRows int64 = 1000
	DefaultCols int64 = 30
)

// Outcome reports whether Open found an existing worksheet or created one.
type Outcome string

const (
	OutcomeFound   Outcome = "FOUND"
	OutcomeCreated Outcome = "CREATED"
)

// Options controls worksheet creation: grid size, and an optional header
// row written into row 1 of a freshly created worksheet.
type Options struct {
	Rows   int64
	Cols   int64
	Header []string
}

// Handle is a bound worksheet inside one spreadsheet.
type Handle struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetID       int64
	title         string
	rows          int64
	cols          int64
}

// Open locates the worksheet by title, creating it with the given options
// when absent. The outcome tags which of the two happened.
func Open(ctx context.Context, svc *sheets.Service, spreadsheetID, title string, opts Options) (*Handle, Outcome, error) {
	ss, err := svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, "", domain.ErrRemote(err, "load spreadsheet %q", spreadsheetID)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			h := &Handle{
				svc:           svc,
				spreadsheetID: spreadsheetID,
				sheetID:       sh.Properties.SheetId,
				title:         title,
			}
			if gp := sh.Properties.GridProperties; gp != nil {
				h.rows = gp.RowCount
				h.cols = gp.ColumnCount
			}
			return h, OutcomeFound, nil
		}
	}

	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	resp, err := svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    rows,
						ColumnCount: cols,
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, "", domain.ErrRemote(err, "create worksheet %q", title)
	}
	h := &Handle{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		title:         title,
		rows:          rows,
		cols:          cols,
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		h.sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	if len(opts.Header) > 0 {
		header := make([]interface{}, len(opts.Header))
		for i, c := range opts.Header {
			header[i] = c
		}
		rng := RangeRef(title, 1, 1, len(opts.Header), 1)
		if err := h.WriteRange(ctx, rng, [][]interface{}{header}, InputRaw); err != nil {
			return nil, "", err
		}
	}
	return h, OutcomeCreated, nil
}

// Title returns the worksheet title.
func (h *Handle) Title() string { return h.title }

// SheetID returns the worksheet's numeric id.
func (h *Handle) SheetID() int64 { return h.sheetID }

// RowCount returns the grid row capacity as last known to the handle.
func (h *Handle) RowCount() int64 { return h.rows }

// EnsureRows grows the grid so it holds at least the given row count.
// Growth happens before any write that needs the capacity.
func (h *Handle) EnsureRows(ctx context.Context, needed int64) error {
	if needed <= h.rows {
		return nil
	}
	_, err := h.svc.Spreadsheets.BatchUpdate(h.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AppendDimension: &sheets.AppendDimensionRequest{
				SheetId:   h.sheetID,
				Dimension: "ROWS",
				Length:    needed - h.rows,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return domain.ErrRemote(err, "grow worksheet %q to %d rows", h.title, needed)
	}
	h.rows = needed
	return nil
}

// CountDataRows counts non-blank cells in column A, excluding the header
// row. A worksheet holding only a header (or nothing) counts as zero.
func (h *Handle) CountDataRows(ctx context.Context) (int64, error) {
	resp, err := h.svc.Spreadsheets.Values.Get(h.spreadsheetID, ColumnRef(h.title, 1)).Context(ctx).Do()
	if err != nil {
		return 0, domain.ErrRemote(err, "count rows of worksheet %q", h.title)
	}
	var nonBlank int64
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		nonBlank++
	}
	if nonBlank <= 1 {
		return 0, nil
	}
	return nonBlank - 1, nil
}

// ReadAll returns every populated row of the worksheet, header included.
func (h *Handle) ReadAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := h.svc.Spreadsheets.Values.Get(h.spreadsheetID, TitleRef(h.title)).Context(ctx).Do()
	if err != nil {
		return nil, domain.ErrRemote(err, "read worksheet %q", h.title)
	}
	return resp.Values, nil
}

// WriteRange updates one A1 range with the given value input option.
func (h *Handle) WriteRange(ctx context.Context, rng string, values [][]interface{}, input string) error {
	_, err := h.svc.Spreadsheets.Values.Update(h.spreadsheetID, rng, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption(input).Context(ctx).Do()
	if err != nil {
		return domain.ErrRemote(err, "write range %s", rng)
	}
	return nil
}

// ClearRange blanks one A1 range without touching the grid dimensions.
func (h *Handle) ClearRange(ctx context.Context, rng string) error {
	_, err := h.svc.Spreadsheets.Values.Clear(h.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return domain.ErrRemote(err, "clear range %s", rng)
	}
	return nil
}
