package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/JonMunkholm/geoimport/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"import_dir", cfg.Import.Dir,
	)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	slog.Info("store ready", "driver", cfg.Database.Driver)

	pool := importer.NewPool(importer.NewCoordinator(st), st, importer.PoolConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		JobTimeout:    cfg.Import.Timeout,
		ResultTTL:     cfg.Import.ResultTTL,
	})

	server := web.NewServer(pool, st, cfg)

	// Background maintenance stops with jobCtx
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go store.StartHistoryPruner(jobCtx, st, store.RetentionConfig{
		Retention:     cfg.Import.HistoryRetention,
		CheckInterval: cfg.Import.HistoryPruneInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first, then let running imports finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := pool.Status(); status.Active > 0 || status.Queued > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active, "queued", status.Queued)
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
