package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgoyal/smartreader/store"
)

const (
	maintenanceInterval = time.Hour
	vacuumEveryNPasses   = 24

	vacuumFreePageThreshold   = 1000
	vacuumFreePercentThreshold = 5.0
)

// Maintenance runs retention cleanup and backup rotation hourly, and an
// opportunistic vacuum every 24th pass (roughly daily).
type Maintenance struct {
	retention *store.RetentionStore
	backups   *store.BackupStore
	stories   *store.StoryStore
	passes    int
}

func NewMaintenance(retention *store.RetentionStore, backups *store.BackupStore, stories *store.StoryStore) *Maintenance {
	return &Maintenance{retention: retention, backups: backups, stories: stories}
}

func (m *Maintenance) Run(ctx context.Context) {
	m.runOnce(ctx)

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Maintenance) runOnce(ctx context.Context) {
	report, err := m.retention.Cleanup(ctx)
	if err != nil {
		slog.Error("maintenance: cleanup failed", "error", err)
	} else {
		slog.Info("maintenance: cleanup complete",
			"dismissed_deleted", report.DismissedDeleted,
			"stories_deleted", report.StoriesDeleted,
			"url_cache_deleted", report.URLCacheDeleted,
			"usage_rolled_up", report.UsageRolledUp,
			"summaries_discarded", report.SummariesDiscarded)
	}

	if err := m.backups.Rotate(ctx); err != nil {
		slog.Error("maintenance: backup rotation failed", "error", err)
	}

	m.passes++
	if m.passes%vacuumEveryNPasses == 0 {
		ran, err := store.MaybeVacuum(ctx, m.stories, vacuumFreePageThreshold, vacuumFreePercentThreshold)
		if err != nil {
			slog.Error("maintenance: vacuum check failed", "error", err)
		} else if ran {
			slog.Info("maintenance: vacuum ran")
		}
	}
}
