package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sheetsync/internal/domain"
	"sheetsync/internal/etl"
	"sheetsync/internal/sheet"
	syncsvc "sheetsync/internal/service/sync"
	"sheetsync/internal/workbook"
)

// SheetOpener opens or creates a worksheet by title. It is nil when no
// Google credentials are configured, in which case only dry runs work.
type SheetOpener interface {
	Open(ctx context.Context, title string, opts sheet.Options) (syncsvc.Sheet, sheet.Outcome, error)
}

// RunRecorder persists run history. Recording is best-effort: failures are
// logged and never fail the batch.
type RunRecorder interface {
	InsertRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
}

// Service orchestrates pipeline runs: resolve the spec, prepare every file
// on a bounded worker pool, merge, sync, record.
type Service struct {
	registry *Registry
	opener   SheetOpener
	syncer   *syncsvc.Syncer
	recorder RunRecorder
	logger   *slog.Logger
	workers  int
}

// NewService creates a pipeline service. opener and recorder may be nil.
func NewService(
	registry *Registry,
	opener SheetOpener,
	syncer *syncsvc.Syncer,
	recorder RunRecorder,
	logger *slog.Logger,
	workers int,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		registry: registry,
		opener:   opener,
		syncer:   syncer,
		recorder: recorder,
		logger:   logger,
		workers:  workers,
	}
}

// Registry exposes the pipeline catalogue.
func (s *Service) Registry() *Registry { return s.registry }

// RunRequest describes one batch run.
type RunRequest struct {
	Pipeline string
	Market   string
	Trigger  string
	Files    []domain.InputFile
	Options  domain.SyncOptions
}

// WipeRequest runs only the delete-from-date step of an append pipeline.
type WipeRequest struct {
	Pipeline string
	Market   string
	Trigger  string
	From     time.Time
}

// Run executes one batch end to end. Validation failures return (nil, err)
// before anything is recorded. Once a run starts it is always recorded; a
// remote failure returns the FAILED result together with the error, while
// partial chunked writes and empty batches are encoded in the result status
// only.
func (s *Service) Run(ctx context.Context, req RunRequest) (*domain.BatchResult, error) {
	spec, err := s.registry.Get(req.Pipeline)
	if err != nil {
		return nil, err
	}
	if err := validateOptions(spec, req.Options); err != nil {
		return nil, err
	}
	rc, err := s.PrepareRun(ctx, req.Pipeline, req.Market, req.Files)
	if err != nil {
		return nil, err
	}
	return s.SyncPrepared(ctx, rc, req.Trigger, req.Options)
}

// PrepareRun does the local half of a run: validate the request, read and
// normalize every file, merge. Nothing is recorded and the remote store is
// never touched. The returned context carries the merged batch, so a failed
// sync can be retried with SyncPrepared without re-reading the files.
func (s *Service) PrepareRun(ctx context.Context, pipelineName, market string, files []domain.InputFile) (*domain.RunContext, error) {
	spec, err := s.registry.Get(pipelineName)
	if err != nil {
		return nil, err
	}
	title, err := spec.WorksheetTitle(market)
	if err != nil {
		return nil, err
	}
	startedAt := time.Now().UTC()
	batch, tables := s.prepare(spec, files, startedAt)
	batch.Table = etl.Merge(tables, spec.MergeKey, spec.SortAsc, spec.SortDesc)
	return &domain.RunContext{
		RunID:     domain.NewID(),
		Pipeline:  spec.Name,
		Market:    marketFor(spec, market),
		Worksheet: title,
		Batch:     batch,
		StartedAt: startedAt,
	}, nil
}

// SyncPrepared records a prepared run and pushes it to the remote store.
// Calling it again with the same context after a failure retries the sync
// under the same run id: history keeps one row whose outcome is updated in
// place.
func (s *Service) SyncPrepared(ctx context.Context, rc *domain.RunContext, trigger string, opts domain.SyncOptions) (*domain.BatchResult, error) {
	spec, err := s.registry.Get(rc.Pipeline)
	if err != nil {
		return nil, err
	}
	if err := validateOptions(spec, opts); err != nil {
		return nil, err
	}

	res := &domain.BatchResult{
		RunID:      rc.RunID,
		Pipeline:   rc.Pipeline,
		Market:     rc.Market,
		Worksheet:  rc.Worksheet,
		Status:     domain.RunStatusFailed,
		FilesTotal: len(rc.Batch.Processed) + len(rc.Batch.Rejected),
		Processed:  rc.Batch.Processed,
		Rejected:   rc.Batch.Rejected,
		StartedAt:  rc.StartedAt,
	}
	logger := s.logger.With("run_id", res.RunID, "pipeline", rc.Pipeline, "worksheet", rc.Worksheet)
	s.record(ctx, logger, res, trigger)

	merged := rc.Batch.Table
	if merged == nil || len(merged.Rows) == 0 {
		res.Status = domain.RunStatusNoData
		s.finish(ctx, logger, res, trigger)
		logger.Info("run produced no data",
			"files_total", res.FilesTotal, "files_rejected", len(res.Rejected))
		return res, nil
	}
	res.RowsMerged = len(merged.Rows)

	if opts.DryRun {
		res.Status = domain.RunStatusSynced
		s.finish(ctx, logger, res, trigger)
		logger.Info("dry run complete", "rows_merged", res.RowsMerged)
		return res, nil
	}

	err = s.syncBatch(ctx, logger, spec, rc.Worksheet, merged, opts, res)
	s.finish(ctx, logger, res, trigger)
	if err != nil {
		return res, err
	}
	logger.Info("run complete", "status", res.Status,
		"rows_merged", res.RowsMerged, "rows_written", res.RowsWritten,
		"rows_deleted", res.RowsDeleted, "chunks", res.Chunks)
	return res, nil
}

// Wipe deletes all rows dated on or after From without uploading anything.
func (s *Service) Wipe(ctx context.Context, req WipeRequest) (*domain.BatchResult, error) {
	spec, err := s.registry.Get(req.Pipeline)
	if err != nil {
		return nil, err
	}
	title, err := spec.WorksheetTitle(req.Market)
	if err != nil {
		return nil, err
	}
	if err := validateOptions(spec, domain.SyncOptions{DeleteFrom: &req.From}); err != nil {
		return nil, err
	}

	res := &domain.BatchResult{
		RunID:     domain.NewID(),
		Pipeline:  spec.Name,
		Market:    marketFor(spec, req.Market),
		Worksheet: title,
		Status:    domain.RunStatusFailed,
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With("run_id", res.RunID, "pipeline", spec.Name, "worksheet", title)
	s.record(ctx, logger, res, req.Trigger)

	ws, err := s.open(ctx, logger, spec, title)
	if err != nil {
		res.Error = err.Error()
		s.finish(ctx, logger, res, req.Trigger)
		return res, err
	}
	del, err := s.syncer.DeleteFromDate(ctx, ws, spec.DateField, req.From)
	if err != nil {
		res.Error = err.Error()
		s.finish(ctx, logger, res, req.Trigger)
		return res, err
	}
	res.RowsDeleted = del.RowsDeleted
	res.Status = domain.RunStatusSynced
	s.finish(ctx, logger, res, req.Trigger)
	logger.Info("wipe complete", "from", req.From.Format("2006-01-02"),
		"rows_deleted", res.RowsDeleted, "rows_kept", del.RowsKept)
	return res, nil
}

// Prepare reads, normalizes, and merges a batch without touching the remote
// store. Export-only callers use it directly.
func (s *Service) Prepare(ctx context.Context, pipelineName string, files []domain.InputFile) (*domain.UploadBatch, error) {
	spec, err := s.registry.Get(pipelineName)
	if err != nil {
		return nil, err
	}
	batch, tables := s.prepare(spec, files, time.Now().UTC())
	batch.Table = etl.Merge(tables, spec.MergeKey, spec.SortAsc, spec.SortDesc)
	return batch, nil
}

// prepare fans file preparation across the worker pool. Results land in a
// position-indexed slice so dedup order stays the original file order no
// matter which worker finishes first.
func (s *Service) prepare(spec domain.PipelineSpec, files []domain.InputFile, now time.Time) (*domain.UploadBatch, []*domain.Table) {
	type outcome struct {
		table *domain.Table
		err   error
	}
	outcomes := make([]outcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range files {
		f := files[i]
		g.Go(func() error {
			raw, err := workbook.Read(f.Name, f.Data)
			if err != nil {
				outcomes[i] = outcome{err: err}
				return nil // a bad file never fails the batch
			}
			t, err := etl.PrepareFile(raw, f.Name, spec, now)
			outcomes[i] = outcome{table: t, err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &domain.UploadBatch{}
	var tables []*domain.Table
	for i, f := range files {
		if outcomes[i].err != nil {
			batch.Rejected = append(batch.Rejected, domain.FileError{
				File:   f.Name,
				Reason: outcomes[i].err.Error(),
			})
			continue
		}
		batch.Processed = append(batch.Processed, f.Name)
		tables = append(tables, outcomes[i].table)
	}
	return batch, tables
}

func (s *Service) syncBatch(
	ctx context.Context,
	logger *slog.Logger,
	spec domain.PipelineSpec,
	title string,
	merged *domain.Table,
	opts domain.SyncOptions,
	res *domain.BatchResult,
) error {
	ws, err := s.open(ctx, logger, spec, title)
	if err != nil {
		res.Error = err.Error()
		return err
	}

	if opts.DeleteFrom != nil {
		del, err := s.syncer.DeleteFromDate(ctx, ws, spec.DateField, *opts.DeleteFrom)
		if err != nil {
			res.Error = err.Error()
			return err
		}
		res.RowsDeleted = del.RowsDeleted
	}

	switch spec.Mode {
	case domain.SyncModeReplace:
		rep, err := s.syncer.Replace(ctx, ws, merged, spec.ClearScope)
		res.RowsWritten = rep.RowsWritten
		res.Chunks = rep.Chunks
		if err != nil {
			return s.writeFailure(res, err)
		}
	default:
		app, err := s.syncer.Append(ctx, ws, merged)
		res.RowsWritten = app.RowsWritten
		res.Chunks = app.Chunks
		if err != nil {
			return s.writeFailure(res, err)
		}
	}
	res.Status = domain.RunStatusSynced
	return nil
}

// writeFailure folds a sync error into the result: a partial chunked write
// leaves durable rows behind and is a result status, not an error.
func (s *Service) writeFailure(res *domain.BatchResult, err error) error {
	var perr *domain.PartialWriteError
	if errors.As(err, &perr) {
		res.Status = domain.RunStatusPartial
		res.RowsWritten = perr.RowsWritten
		res.Error = err.Error()
		return nil
	}
	res.Error = err.Error()
	return err
}

func (s *Service) open(ctx context.Context, logger *slog.Logger, spec domain.PipelineSpec, title string) (syncsvc.Sheet, error) {
	if s.opener == nil {
		return nil, domain.ErrRemote(nil, "remote sync is not configured, set SHEETSYNC_CREDENTIALS_FILE")
	}
	opts := sheet.Options{Rows: spec.CreateRows, Cols: spec.CreateCols}
	if spec.HeaderOnCreate && spec.Schema.Fixed() {
		opts.Header = spec.Schema.Columns()
	}
	ws, outcome, err := s.opener.Open(ctx, title, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("worksheet ready", "outcome", string(outcome))
	return ws, nil
}

// record inserts the run row up front so an aborted process still leaves a
// FAILED trace. A conflict means a retried sync is reusing its run id; the
// existing row stays and finish overwrites the outcome.
func (s *Service) record(ctx context.Context, logger *slog.Logger, res *domain.BatchResult, trigger string) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.InsertRun(ctx, runFromResult(res, trigger))
	var conflict *domain.ConflictError
	if err != nil && !errors.As(err, &conflict) {
		logger.Warn("record run failed", "error", err)
	}
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, res *domain.BatchResult, trigger string) {
	res.FinishedAt = time.Now().UTC()
	if s.recorder == nil {
		return
	}
	run := runFromResult(res, trigger)
	finished := res.FinishedAt
	run.FinishedAt = &finished
	if err := s.recorder.FinishRun(ctx, run); err != nil {
		logger.Warn("record run outcome failed", "error", err)
	}
}

func runFromResult(res *domain.BatchResult, trigger string) *domain.Run {
	return &domain.Run{
		ID:             res.RunID,
		Pipeline:       res.Pipeline,
		Market:         res.Market,
		Worksheet:      res.Worksheet,
		Trigger:        trigger,
		Status:         res.Status,
		FilesTotal:     res.FilesTotal,
		FilesProcessed: len(res.Processed),
		FilesRejected:  len(res.Rejected),
		RowsMerged:     res.RowsMerged,
		RowsWritten:    res.RowsWritten,
		RowsDeleted:    res.RowsDeleted,
		Error:          res.Error,
		StartedAt:      res.StartedAt,
		FileErrors:     res.Rejected,
	}
}

func marketFor(spec domain.PipelineSpec, market string) string {
	if !spec.PerMarket {
		return ""
	}
	return strings.TrimSpace(market)
}

func validateOptions(spec domain.PipelineSpec, opts domain.SyncOptions) error {
	if opts.DeleteFrom == nil {
		return nil
	}
	if spec.Mode != domain.SyncModeAppend {
		return domain.ErrValidation("pipeline %q: delete-from applies to append pipelines only", spec.Name)
	}
	if spec.DateField == "" {
		return domain.ErrValidation("pipeline %q has no date column to delete by", spec.Name)
	}
	return nil
}
