package domain

import "time"

// Run status constants.
const (
	RunStatusSynced  = "SYNCED"
	RunStatusPartial = "PARTIAL"
	RunStatusNoData  = "NO_DATA"
	RunStatusFailed  = "FAILED"
)

// Run trigger constants.
const (
	TriggerCLI   = "CLI"
	TriggerAPI   = "API"
	TriggerWatch = "WATCH"
)

// InputFile is one uploaded workbook: its name (used for date and identifier
// extraction) and raw bytes. No other metadata is required.
type InputFile struct {
	Name string
	Data []byte
}

// FileError records why one file was rejected from a batch.
type FileError struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// UploadBatch is the merged, sorted table of one run plus the per-file
// outcomes that produced it.
type UploadBatch struct {
	Table     *Table
	Processed []string
	Rejected  []FileError
}

// SyncOptions are caller choices for the sync step of a run.
type SyncOptions struct {
	// DeleteFrom opts in to the destructive delete of all rows dated on or
	// after the cutoff before appending. Append-mode pipelines only.
	DeleteFrom *time.Time
	// DryRun stops after merge; nothing touches the remote store.
	DryRun bool
}

// RunContext is the caller-owned state between preparing a batch and syncing
// it, so a failed sync can be retried without re-reading the input files.
type RunContext struct {
	RunID     string
	Pipeline  string
	Market    string
	Worksheet string
	Batch     *UploadBatch
	StartedAt time.Time
}

// BatchResult summarizes one orchestrator run.
type BatchResult struct {
	RunID       string      `json:"run_id"`
	Pipeline    string      `json:"pipeline"`
	Market      string      `json:"market,omitempty"`
	Worksheet   string      `json:"worksheet,omitempty"`
	Status      string      `json:"status"`
	FilesTotal  int         `json:"files_total"`
	Processed   []string    `json:"processed,omitempty"`
	Rejected    []FileError `json:"rejected,omitempty"`
	RowsMerged  int         `json:"rows_merged"`
	RowsWritten int         `json:"rows_written"`
	RowsDeleted int         `json:"rows_deleted"`
	Chunks      int         `json:"chunks"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

// Run is one persisted run-history record.
type Run struct {
	ID             string      `json:"id"`
	Pipeline       string      `json:"pipeline"`
	Market         string      `json:"market,omitempty"`
	Worksheet      string      `json:"worksheet,omitempty"`
	Trigger        string      `json:"trigger"`
	Status         string      `json:"status"`
	FilesTotal     int         `json:"files_total"`
	FilesProcessed int         `json:"files_processed"`
	FilesRejected  int         `json:"files_rejected"`
	RowsMerged     int         `json:"rows_merged"`
	RowsWritten    int         `json:"rows_written"`
	RowsDeleted    int         `json:"rows_deleted"`
	Error          string      `json:"error,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	FileErrors     []FileError `json:"file_errors,omitempty"`
}
