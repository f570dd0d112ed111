// Package sync writes merged tables into remote worksheets: chunked paced
// appends below the existing data, destructive date-range deletes, and
// full replaces.
package sync

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sheetsync/internal/domain"
	"sheetsync/internal/etl"
	"sheetsync/internal/sheet"
)

// DefaultChunkSize is the row count per range write.
const DefaultChunkSize = 500

// Sheet is the remote worksheet surface the syncer writes through.
type Sheet interface {
	Title() string
	RowCount() int64
	EnsureRows(ctx context.Context, needed int64) error
	CountDataRows(ctx context.Context) (int64, error)
	ReadAll(ctx context.Context) ([][]interface{}, error)
	WriteRange(ctx context.Context, rng string, values [][]interface{}, input string) error
	ClearRange(ctx context.Context, rng string) error
}

var _ Sheet = (*sheet.Handle)(nil)

// AppendResult reports where an append landed.
type AppendResult struct {
	StartRow    int64
	EndRow      int64
	RowsWritten int
	Chunks      int
}

// DeleteResult reports a delete-from-date partition.
type DeleteResult struct {
	RowsDeleted int
	RowsKept    int
}

// ReplaceResult reports a full rewrite.
type ReplaceResult struct {
	RowsWritten int
	Chunks      int
}

// Syncer performs worksheet writes in fixed-size chunks, pacing successive
// API writes through a token bucket.
type Syncer struct {
	logger    *slog.Logger
	chunkSize int
	limiter   *rate.Limiter
}

// NewSyncer builds a syncer. A non-positive chunk size falls back to the
// default; writesPerMinute zero disables pacing.
func NewSyncer(logger *slog.Logger, chunkSize, writesPerMinute int) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var limiter *rate.Limiter
	if writesPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(writesPerMinute)/60), 1)
	}
	return &Syncer{logger: logger, chunkSize: chunkSize, limiter: limiter}
}

// Append writes the table's rows directly below the worksheet's existing
// data. The first data row of a worksheet is row 2; with n existing data
// rows the append starts at row n+2. Capacity is grown before any write.
// A failure after at least one successful chunk returns a
// PartialWriteError carrying the rows already written.
func (s *Syncer) Append(ctx context.Context, ws Sheet, t *domain.Table) (AppendResult, error) {
	var res AppendResult
	if t == nil || len(t.Rows) == 0 {
		return res, nil
	}
	existing, err := ws.CountDataRows(ctx)
	if err != nil {
		return res, err
	}
	startRow := existing + 2
	res.StartRow = startRow
	res.EndRow = startRow - 1
	if err := ws.EnsureRows(ctx, startRow+int64(len(t.Rows))-1); err != nil {
		return res, err
	}

	values := serializeRows(t)
	width := len(t.Columns)
	for i := 0; i < len(values); i += s.chunkSize {
		end := i + s.chunkSize
		if end > len(values) {
			end = len(values)
		}
		first := startRow + int64(i)
		last := startRow + int64(end) - 1
		rng := sheet.RangeRef(ws.Title(), 1, int(first), width, int(last))
		if err := s.writeChunk(ctx, ws, rng, values[i:end]); err != nil {
			return res, s.chunkFailure(err, res.Chunks, res.RowsWritten)
		}
		res.RowsWritten += end - i
		res.Chunks++
		res.EndRow = last
		s.logger.Debug("chunk written", "worksheet", ws.Title(), "range", rng, "rows", end-i)
	}
	s.logger.Info("append complete",
		"worksheet", ws.Title(), "rows", res.RowsWritten, "start_row", res.StartRow, "chunks", res.Chunks)
	return res, nil
}

// DeleteFromDate drops every data row whose date cell parses to a date on
// or after the cutoff, then clears the worksheet and rewrites the header
// with the kept rows in one pass. Rows whose date cell parses with none of
// the supported formats are kept. Nothing is rewritten when no row
// matches.
func (s *Syncer) DeleteFromDate(ctx context.Context, ws Sheet, dateColumn string, cutoff time.Time) (DeleteResult, error) {
	var res DeleteResult
	all, err := ws.ReadAll(ctx)
	if err != nil {
		return res, err
	}
	if len(all) == 0 {
		return res, nil
	}
	header := all[0]
	ci := -1
	for i, c := range header {
		if strings.EqualFold(strings.TrimSpace(cellString(c)), strings.TrimSpace(dateColumn)) {
			ci = i
			break
		}
	}
	if ci < 0 {
		return res, domain.ErrValidation("date column %q not found in worksheet %q", dateColumn, ws.Title())
	}

	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	kept := make([][]interface{}, 0, len(all))
	kept = append(kept, header)
	for _, row := range all[1:] {
		if ci < len(row) {
			if d, ok := etl.ParseCellDate(cellString(row[ci])); ok && !d.Before(cutoff) {
				res.RowsDeleted++
				continue
			}
		}
		kept = append(kept, row)
		res.RowsKept++
	}
	if res.RowsDeleted == 0 {
		return res, nil
	}

	if err := ws.ClearRange(ctx, sheet.TitleRef(ws.Title())); err != nil {
		return res, err
	}
	rng := sheet.RangeRef(ws.Title(), 1, 1, len(header), len(kept))
	if err := s.writeChunk(ctx, ws, rng, kept); err != nil {
		return res, err
	}
	s.logger.Info("date range deleted",
		"worksheet", ws.Title(), "cutoff", cutoff.Format("2006-01-02"),
		"deleted", res.RowsDeleted, "kept", res.RowsKept)
	return res, nil
}

// Replace clears the target region and rewrites header plus data. The
// SHEET scope clears the whole worksheet; the COLUMNS scope clears only
// the table's column span, leaving anything to the right untouched. The
// header goes in as raw text, data rows by chunk below it.
func (s *Syncer) Replace(ctx context.Context, ws Sheet, t *domain.Table, scope string) (ReplaceResult, error) {
	var res ReplaceResult
	if t == nil || len(t.Columns) == 0 {
		return res, nil
	}
	width := len(t.Columns)

	switch scope {
	case domain.ClearScopeColumns:
		rows := ws.RowCount()
		if rows <= 0 {
			rows = sheet.DefaultRows
		}
		if err := ws.ClearRange(ctx, sheet.RangeRef(ws.Title(), 1, 1, width, int(rows))); err != nil {
			return res, err
		}
	default:
		if err := ws.ClearRange(ctx, sheet.TitleRef(ws.Title())); err != nil {
			return res, err
		}
	}
	if err := ws.EnsureRows(ctx, int64(len(t.Rows))+1); err != nil {
		return res, err
	}

	header := make([]interface{}, width)
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := s.pace(ctx); err != nil {
		return res, err
	}
	if err := ws.WriteRange(ctx, sheet.RangeRef(ws.Title(), 1, 1, width, 1), [][]interface{}{header}, sheet.InputRaw); err != nil {
		return res, err
	}

	values := serializeRows(t)
	for i := 0; i < len(values); i += s.chunkSize {
		end := i + s.chunkSize
		if end > len(values) {
			end = len(values)
		}
		rng := sheet.RangeRef(ws.Title(), 1, i+2, width, end+1)
		if err := s.writeChunk(ctx, ws, rng, values[i:end]); err != nil {
			return res, s.chunkFailure(err, res.Chunks, res.RowsWritten)
		}
		res.RowsWritten += end - i
		res.Chunks++
	}
	s.logger.Info("replace complete", "worksheet", ws.Title(), "rows", res.RowsWritten, "scope", scope)
	return res, nil
}

func (s *Syncer) writeChunk(ctx context.Context, ws Sheet, rng string, values [][]interface{}) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	return ws.WriteRange(ctx, rng, values, sheet.InputUserEntered)
}

func (s *Syncer) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// chunkFailure wraps a mid-batch write error. With nothing yet written the
// cause passes through untouched.
func (s *Syncer) chunkFailure(err error, chunksDone, rowsWritten int) error {
	if rowsWritten == 0 {
		return err
	}
	return domain.ErrPartialWrite(err, chunksDone+1, rowsWritten)
}
