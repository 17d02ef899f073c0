package core

// scheduler.go runs background maintenance for run history. Stored runs
// older than the retention window are pruned once at start and then on every
// tick. Failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the history pruner.
type PruneConfig struct {
	RetentionDays int           // Days to keep finished runs (default: 30)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartHistoryPruner blocks, pruning run history until ctx is cancelled.
// Callers normally start it in its own goroutine.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
	)

	// Run immediately on startup
	s.PruneHistory(ctx, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.PruneHistory(ctx, cfg.RetentionDays)
		}
	}
}

// PruneHistory deletes runs that finished more than retentionDays ago.
func (s *Service) PruneHistory(ctx context.Context, retentionDays int) (int64, error) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -retentionDays)

	n, err := s.store.PruneRuns(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return 0, err
	}

	slog.Info("pruned run history",
		"runs_deleted", n,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}
