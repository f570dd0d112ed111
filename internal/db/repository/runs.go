package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sheetsync/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// RunRepo records pipeline runs and their per-file rejections.
type RunRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewRunRepo creates a RunRepo over a write/read pool pair. Passing the
// same pool twice is fine for CLI use.
func NewRunRepo(writeDB, readDB *sql.DB) *RunRepo {
	return &RunRepo{writeDB: writeDB, readDB: readDB}
}

// InsertRun records the start of a run. Only identity fields and the start
// time are known at this point.
func (r *RunRepo) InsertRun(ctx context.Context, run *domain.Run) error {
	_, err := r.writeDB.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, market, worksheet, trigger_source, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Market, run.Worksheet, run.Trigger, run.Status,
		run.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return mapDBError(fmt.Errorf("insert run: %w", err))
	}
	return nil
}

// FinishRun stores the final counters, status and rejections of a run. It
// is idempotent: a retried sync that reuses its run id overwrites the
// recorded outcome instead of duplicating it.
func (r *RunRepo) FinishRun(ctx context.Context, run *domain.Run) error {
	var finishedAt interface{}
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC().Format(timeLayout)
	}
	var errMsg interface{}
	if run.Error != "" {
		errMsg = run.Error
	}
	_, err := r.writeDB.ExecContext(ctx,
		`UPDATE runs SET status = ?, files_total = ?, files_processed = ?, files_rejected = ?,
		        rows_merged = ?, rows_written = ?, rows_deleted = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		run.Status, run.FilesTotal, run.FilesProcessed, run.FilesRejected,
		run.RowsMerged, run.RowsWritten, run.RowsDeleted, errMsg, finishedAt, run.ID)
	if err != nil {
		return mapDBError(fmt.Errorf("finish run: %w", err))
	}
	if _, err := r.writeDB.ExecContext(ctx,
		`DELETE FROM file_errors WHERE run_id = ?`, run.ID); err != nil {
		return mapDBError(fmt.Errorf("clear file errors: %w", err))
	}
	for _, fe := range run.FileErrors {
		if _, err := r.writeDB.ExecContext(ctx,
			`INSERT INTO file_errors (run_id, file_name, reason) VALUES (?, ?, ?)`,
			run.ID, fe.File, fe.Reason); err != nil {
			return mapDBError(fmt.Errorf("insert file error: %w", err))
		}
	}
	return nil
}

// GetRun returns one run with its file errors.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.readDB.QueryRowContext(ctx,
		`SELECT id, pipeline, market, worksheet, trigger_source, status,
		        files_total, files_processed, files_rejected,
		        rows_merged, rows_written, rows_deleted,
		        error_message, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("run %q not found", id)
		}
		return nil, err
	}

	rows, err := r.readDB.QueryContext(ctx,
		`SELECT file_name, reason FROM file_errors WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("list file errors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fe domain.FileError
		if err := rows.Scan(&fe.File, &fe.Reason); err != nil {
			return nil, err
		}
		run.FileErrors = append(run.FileErrors, fe)
	}
	return run, rows.Err()
}

// RunFilter narrows ListRuns. Zero values mean "any".
type RunFilter struct {
	Pipeline string
	Status   string
	Limit    int
}

// ListRuns returns runs newest-first. File errors are not loaded here.
func (r *RunRepo) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	q := strings.Builder{}
	q.WriteString(
		`SELECT id, pipeline, market, worksheet, trigger_source, status,
		        files_total, files_processed, files_rejected,
		        rows_merged, rows_written, rows_deleted,
		        error_message, started_at, finished_at
		 FROM runs`)
	var args []interface{}
	var conds []string
	if filter.Pipeline != "" {
		conds = append(conds, "pipeline = ?")
		args = append(args, filter.Pipeline)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString(" ORDER BY started_at DESC, id DESC")
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	q.WriteString(" LIMIT ?")
	args = append(args, limit)

	rows, err := r.readDB.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var errMsg, startedAt, finishedAt sql.NullString
	err := row.Scan(&run.ID, &run.Pipeline, &run.Market, &run.Worksheet, &run.Trigger, &run.Status,
		&run.FilesTotal, &run.FilesProcessed, &run.FilesRejected,
		&run.RowsMerged, &run.RowsWritten, &run.RowsDeleted,
		&errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if startedAt.Valid {
		run.StartedAt, _ = time.Parse(timeLayout, startedAt.String)
	}
	if finishedAt.Valid {
		t, _ := time.Parse(timeLayout, finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}
