// Package main is the entry point for the sheetsync HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sheetsync/internal/api"
	"sheetsync/internal/app"
	"sheetsync/internal/config"
	"sheetsync/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return fmt.Errorf("open run history store: %w", err)
	}
	defer writeDB.Close() //nolint:errcheck
	defer readDB.Close()  //nolint:errcheck

	if err := db.RunMigrations(writeDB); err != nil {
		return err
	}

	a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, WriteDB: writeDB, ReadDB: readDB})
	if err != nil {
		return err
	}

	if cfg.WatchDir != "" {
		w := a.NewWatcher()
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
	}

	handler := api.NewHandler(a.Pipelines, a.Runs, logger)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewRouter(cfg, logger, handler),
		// Uploads of large workbooks can take a while; reads get a
		// generous window while idle keep-alives are bounded.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("server listening",
		"addr", cfg.ListenAddr,
		"auth", cfg.AuthEnabled(),
		"sync", cfg.CredentialsFile != "")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
