package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"patchplan/internal/config"
	"patchplan/internal/logging"
	"patchplan/internal/panel"
	"patchplan/internal/security"
	"patchplan/internal/storage"
	"patchplan/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"storage_path", cfg.Storage.Path,
		"upload_max_mb", cfg.Upload.MaxFileSizeMB,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Open local storage
	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open storage", "error", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}
	defer db.Close()

	// Configuration store: bundled defaults plus persisted user entries
	store := panel.NewStore(ctx, db)
	slog.Info("configuration store ready",
		"defaults", len(store.DefaultConfigurations()),
		"user", len(store.UserConfigurations()),
	)

	// Shared limiter for cable-link uploads and configuration imports
	uploads := security.NewRateLimiter(cfg.Rate.UploadAttempts, cfg.Rate.UploadWindow)

	server := web.NewServer(cfg, store, uploads)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
