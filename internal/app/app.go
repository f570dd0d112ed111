// Package app wires configuration, storage, the Google Sheets client and
// the pipeline engine into one unit shared by the CLI and the server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"sheetsync/internal/config"
	"sheetsync/internal/db/repository"
	"sheetsync/internal/service/pipeline"
	syncsvc "sheetsync/internal/service/sync"
	"sheetsync/internal/sheet"
)

// Deps holds the external dependencies that main() must provide: config,
// logger, and the run-history database pools.
type Deps struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	WriteDB *sql.DB
	ReadDB  *sql.DB
}

// App is the fully wired application.
type App struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Pipelines *pipeline.Service
	Runs      *repository.RunRepo
}

// New builds the registry, remote opener, syncer and orchestrator from the
// provided deps. Without a credentials file the opener stays nil: dry runs,
// exports and history keep working, live syncs fail with a RemoteError.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := pipeline.NewRegistry()
	if cfg.SpecsDir != "" {
		if err := registry.LoadDir(cfg.SpecsDir); err != nil {
			return nil, fmt.Errorf("load pipeline specs: %w", err)
		}
	}

	var opener pipeline.SheetOpener
	if cfg.CredentialsFile != "" {
		if cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("a spreadsheet id is required when credentials are configured, set SHEETSYNC_SPREADSHEET_ID")
		}
		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("google sheets client: %w", err)
		}
		opener = &sheetOpener{svc: svc, spreadsheetID: cfg.SpreadsheetID}
	}

	runs := repository.NewRunRepo(deps.WriteDB, deps.ReadDB)
	syncer := syncsvc.NewSyncer(logger.With("component", "syncer"), cfg.ChunkSize, cfg.WritesPerMinute)
	svc := pipeline.NewService(registry, opener, syncer, runs, logger.With("component", "pipeline"), cfg.Workers)

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		Pipelines: svc,
		Runs:      runs,
	}, nil
}

// NewWatcher builds the drop-folder watcher over the wired service.
func (a *App) NewWatcher() *pipeline.Watcher {
	return pipeline.NewWatcher(a.Pipelines, a.Cfg.WatchDir, a.Cfg.WatchSchedule, a.Logger.With("component", "watcher"))
}

// sheetOpener binds sheet.Open to one spreadsheet.
type sheetOpener struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (o *sheetOpener) Open(ctx context.Context, title string, opts sheet.Options) (syncsvc.Sheet, sheet.Outcome, error) {
	return sheet.Open(ctx, o.svc, o.spreadsheetID, title, opts)
}
