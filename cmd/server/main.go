// Package main is the entry point for the steam-arena API server.
//
// main stays small. It loads configuration, builds the logger, and hands
// the HTTP server and the background resync worker to a supervisor tree.
// Everything else lives under internal/.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sakif/steam-arena/internal/config"
	"github.com/sakif/steam-arena/internal/server"
	"github.com/sakif/steam-arena/internal/supervisor"
	"github.com/sakif/steam-arena/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "steam-arena: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	// A .env file is optional. Real environment variables win over it
	// because godotenv.Load never overwrites a variable that is already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if !cfg.Steam.Enabled() {
		logger.Warn("STEAM_API_KEY not set; registration and sync endpoints will return upstream errors")
	}

	// === 3. DATABASE DIRECTORY ===
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	// === 4. WIRING ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(srv.HTTPServer(), cfg.Server.ShutdownTimeout))
	tree.AddWorker(worker.NewResync(srv.SyncService(), cfg.Sync.Interval, logger))
	tree.AddWorker(worker.NewSnapshot(srv.PlaytimeService(), cfg.Sync.SnapshotInterval, logger))

	// === 5. RUN UNTIL SIGNALLED ===
	// Ctrl+C or SIGTERM cancels ctx; the tree then stops the HTTP server
	// (draining in-flight requests) and the worker before Serve returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting steam-arena",
		slog.String("addr", cfg.Server.Addr()),
		slog.String("db", cfg.Database.Path),
		slog.Duration("resync_interval", cfg.Sync.Interval),
	)

	err = tree.Serve(ctx)
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		logger.Warn("services did not stop in time", slog.Int("count", len(report)))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
