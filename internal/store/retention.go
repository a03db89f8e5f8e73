package store

// retention.go runs the import history pruner.
//
// The pruner is long-running and stops with its context. A failed pass is
// logged and retried on the next tick; it never stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the part of Store the history pruner needs.
type Pruner interface {
	PruneImports(ctx context.Context, before time.Time) (int64, error)
}

// RetentionConfig controls history pruning.
type RetentionConfig struct {
	Retention     time.Duration // Age after which history rows are deleted; 0 disables
	CheckInterval time.Duration // How often to run (default: 24h)
}

// StartHistoryPruner deletes history rows older than cfg.Retention. It runs
// immediately, then every CheckInterval, until ctx is cancelled.
func StartHistoryPruner(ctx context.Context, p Pruner, cfg RetentionConfig) {
	if cfg.Retention <= 0 {
		slog.Info("history pruning disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	slog.Info("history pruner started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	pruneHistory(ctx, p, cfg.Retention, time.Now)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			pruneHistory(ctx, p, cfg.Retention, time.Now)
		}
	}
}

// pruneHistory performs one pass.
func pruneHistory(ctx context.Context, p Pruner, retention time.Duration, now func() time.Time) {
	start := time.Now()
	pruned, err := p.PruneImports(ctx, now().Add(-retention))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned import history",
		"rows_pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
