package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sheetsync/internal/app"
	"sheetsync/internal/config"
	"sheetsync/internal/db"
	"sheetsync/internal/domain"
)

// overrides are flag values that win over environment configuration.
type overrides struct {
	credentials string
	spreadsheet string
}

// buildApp loads the environment configuration, opens the run-history
// store and wires the engine. The returned closer shuts the database pools.
func buildApp(ctx context.Context, ov overrides) (*app.App, func(), error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if ov.credentials != "" {
		cfg.CredentialsFile = ov.credentials
	}
	if ov.spreadsheet != "" {
		cfg.SpreadsheetID = ov.spreadsheet
	}

	logger := cfg.NewLogger(os.Stderr)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history store: %w", err)
	}
	closer := func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}
	if err := db.RunMigrations(writeDB); err != nil {
		closer()
		return nil, nil, err
	}

	a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, WriteDB: writeDB, ReadDB: readDB})
	if err != nil {
		closer()
		return nil, nil, err
	}
	return a, closer, nil
}

// readInputFiles loads workbook files named on the command line.
func readInputFiles(paths []string) ([]domain.InputFile, error) {
	files := make([]domain.InputFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // paths come from the operator
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, domain.InputFile{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}
