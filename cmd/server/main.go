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

	_ "github.com/JonMunkholm/SheetImport/internal/catalog" // Register all containers
	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/history"
	"github.com/JonMunkholm/SheetImport/internal/logging"
	"github.com/JonMunkholm/SheetImport/internal/web"
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
		"port", cfg.Server.Port,
		"history_driver", cfg.History.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		slog.Error("failed to open run history", "driver", cfg.History.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	fetcher := core.NewHTTPFetcher(core.FetcherConfig{
		BaseURL:           cfg.Sheets.BaseURL,
		Timeout:           cfg.Sheets.FetchTimeout,
		MaxPageSize:       cfg.Sheets.MaxPageSize,
		RequestsPerSecond: cfg.Sheets.RequestsPerSecond,
		Burst:             cfg.Sheets.Burst,
		UserAgent:         cfg.Sheets.UserAgent,
	})

	service := core.NewService(fetcher, store, core.ServiceConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		RunTimeout:    cfg.Import.Timeout,
		ResultTTL:     cfg.Import.ResultTTL,
	})

	// Log registered containers
	slog.Info("containers registered",
		"count", core.ContainerCount(),
		"groups", len(core.Groups()),
	)
	for _, info := range service.ListContainers() {
		slog.Debug("container", "key", info.Key, "group", info.Group)
	}

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartHistoryPruner(jobCtx, core.PruneConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.PruneInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting work first, then let active imports finish
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.Drain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time, cancelling", "error", err)
				service.CancelAll()
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
