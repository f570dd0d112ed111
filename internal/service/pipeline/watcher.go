package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"sheetsync/internal/domain"
)

// Watcher scans a drop folder on a cron schedule and runs each directory's
// files as one batch. Layout: <dir>/<pipeline>/<market>/file.xlsx, with the
// market level omitted for pipelines that have no market suffix. Consumed
// files move to <dir>/.done or <dir>/.failed, prefixed with the run id.
type Watcher struct {
	svc      *Service
	cron     *cron.Cron
	dir      string
	schedule string
	logger   *slog.Logger

	// mu makes scans mutually exclusive; an overlapping tick is skipped.
	mu sync.Mutex
}

// NewWatcher creates a watcher for dir firing on the given cron schedule.
func NewWatcher(svc *Service, dir, schedule string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		svc:      svc,
		cron:     cron.New(),
		dir:      dir,
		schedule: schedule,
		logger:   logger,
	}
}

// Start validates the schedule and starts ticking.
func (w *Watcher) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.tick); err != nil {
		return fmt.Errorf("watch schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Info("watcher started", "dir", w.dir, "schedule", w.schedule)
	return nil
}

// Stop stops the cron loop and waits for an in-flight scan to finish.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("watcher stopped")
}

func (w *Watcher) tick() {
	if !w.mu.TryLock() {
		w.logger.Debug("scan still running, skipping tick")
		return
	}
	defer w.mu.Unlock()
	if err := w.Scan(context.Background()); err != nil {
		w.logger.Warn("scan failed", "error", err)
	}
}

// Scan walks the drop folder once. Directories that don't name a pipeline
// are left alone, so unrelated files can live beside the watched ones.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		spec, err := w.svc.Registry().Get(e.Name())
		if err != nil {
			w.logger.Debug("directory does not name a pipeline, skipping", "dir", e.Name())
			continue
		}
		pipeDir := filepath.Join(w.dir, e.Name())

		if !spec.PerMarket {
			w.runDir(ctx, spec.Name, "", pipeDir)
			continue
		}
		markets, err := os.ReadDir(pipeDir)
		if err != nil {
			w.logger.Warn("read pipeline directory failed", "dir", pipeDir, "error", err)
			continue
		}
		for _, m := range markets {
			if !m.IsDir() || strings.HasPrefix(m.Name(), ".") {
				continue
			}
			w.runDir(ctx, spec.Name, m.Name(), filepath.Join(pipeDir, m.Name()))
		}
	}
	return nil
}

// runDir runs every file in dir as one batch and files the results away.
func (w *Watcher) runDir(ctx context.Context, pipeline, market, dir string) {
	files, paths := w.collect(dir)
	if len(files) == 0 {
		return
	}

	res, err := w.svc.Run(ctx, RunRequest{
		Pipeline: pipeline,
		Market:   market,
		Trigger:  domain.TriggerWatch,
		Files:    files,
	})
	if err != nil || res == nil {
		runID := ""
		if res != nil {
			runID = res.RunID
		}
		w.logger.Error("watch run failed",
			"pipeline", pipeline, "market", market, "error", err)
		for _, p := range paths {
			w.move(p, ".failed", runID)
		}
		return
	}

	switch res.Status {
	case domain.RunStatusSynced, domain.RunStatusPartial:
		rejected := make(map[string]bool, len(res.Rejected))
		for _, fe := range res.Rejected {
			rejected[fe.File] = true
		}
		for i, f := range files {
			if rejected[f.Name] {
				w.move(paths[i], ".failed", res.RunID)
			} else {
				w.move(paths[i], ".done", res.RunID)
			}
		}
	default:
		for _, p := range paths {
			w.move(p, ".failed", res.RunID)
		}
	}
	w.logger.Info("watch batch complete",
		"pipeline", pipeline, "market", market, "run_id", res.RunID,
		"status", res.Status, "files", len(files))
}

// collect reads every regular file in dir. Unreadable files are skipped and
// retried on the next scan.
func (w *Watcher) collect(dir string) ([]domain.InputFile, []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("read batch directory failed", "dir", dir, "error", err)
		return nil, nil
	}

	var files []domain.InputFile
	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) //nolint:gosec // files come from the operator's drop folder
		if err != nil {
			w.logger.Warn("read file failed", "file", path, "error", err)
			continue
		}
		files = append(files, domain.InputFile{Name: e.Name(), Data: data})
		paths = append(paths, path)
	}
	return files, paths
}

func (w *Watcher) move(path, bucket, runID string) {
	destDir := filepath.Join(w.dir, bucket)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		w.logger.Warn("create bucket directory failed", "dir", destDir, "error", err)
		return
	}
	name := filepath.Base(path)
	if runID != "" {
		name = runID + "_" + name
	}
	if err := os.Rename(path, filepath.Join(destDir, name)); err != nil {
		w.logger.Warn("move failed", "file", path, "error", err)
	}
}
