package store

import (
	"context"
	"database/sql"
	"time"
)

// CleanupHorizons configures the three retention windows, all overridable
// via env/CLI per the ambient config surface.
type CleanupHorizons struct {
	DismissedHours int // dismissed stories older than this are eligible for deletion
	StoryDays      int // stories older than this, not read-later/dismissed, are deleted
	URLCacheDays   int // url_cache rows older than this are deleted
}

// DefaultCleanupHorizons matches the defaults implied by spec.md §4.1/§4.5.
var DefaultCleanupHorizons = CleanupHorizons{
	DismissedHours: 24,
	StoryDays:      30,
	URLCacheDays:   14,
}

// dismissalGraceDays keeps a dismissal marker around after its story is gone
// so a later ingestion pass can never resurrect it; HN never reissues ids
// within the new-feed window, so this is a safe ceiling rather than a
// correctness requirement.
const dismissalGraceDays = 60

// usageLogRolloverMonths and usageSummaryDiscardMonths bound the usage
// aggregation pipeline (§4.1).
const (
	usageLogRolloverMonths   = 6
	usageSummaryDiscardMonths = 36
)

// CleanupReport tallies what one retention pass removed, for logging.
type CleanupReport struct {
	DismissedDeleted   int64
	StoriesDeleted     int64
	URLCacheDeleted    int64
	UsageRolledUp      int64
	SummariesDiscarded int64
}

type RetentionStore struct {
	db       *sql.DB
	stories  *StoryStore
	usage    *UsageStore
	cache    *CacheStore
	horizons CleanupHorizons
}

func NewRetentionStore(db *sql.DB, horizons CleanupHorizons) *RetentionStore {
	return &RetentionStore{
		db:       db,
		stories:  NewStoryStore(db),
		usage:    NewUsageStore(db),
		cache:    NewCacheStore(db),
		horizons: horizons,
	}
}

// Cleanup runs all of §4.1's cleanup steps in one pass: dismissed stories
// past the dismissed horizon, aged-out non-read-later/non-dismissed stories,
// aged-out URL cache rows, usage-log rollup, and summary decay. Delete order
// within each story deletion is child tables before stories, handled by
// StoryStore.DeleteStory.
func (r *RetentionStore) Cleanup(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	now := time.Now()

	dismissedCutoff := now.Add(-time.Duration(r.horizons.DismissedHours) * time.Hour).Unix()
	ids, err := r.dismissedStoryIDsOlderThan(ctx, dismissedCutoff)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if err := r.stories.DeleteStory(ctx, id); err != nil {
			return report, err
		}
		report.DismissedDeleted++
	}

	storyCutoff := now.AddDate(0, 0, -r.horizons.StoryDays).Unix()
	ids, err = r.agedStoryIDs(ctx, storyCutoff)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if err := r.stories.DeleteStory(ctx, id); err != nil {
			return report, err
		}
		report.StoriesDeleted++
	}

	cacheCutoff := now.AddDate(0, 0, -r.horizons.URLCacheDays).Unix()
	n, err := r.cache.DeleteOlderThan(ctx, cacheCutoff)
	if err != nil {
		return report, err
	}
	report.URLCacheDeleted = n

	rollupCutoff := now.AddDate(0, -usageLogRolloverMonths, 0).Unix()
	rolled, err := r.usage.RollupOlderThan(ctx, rollupCutoff)
	if err != nil {
		return report, err
	}
	report.UsageRolledUp = rolled

	summaryCutoff := now.AddDate(0, -usageSummaryDiscardMonths, 0)
	discarded, err := r.usage.DiscardSummariesOlderThan(ctx, summaryCutoff)
	if err != nil {
		return report, err
	}
	report.SummariesDiscarded = discarded

	if err := r.pruneDismissalMarkers(ctx, now.AddDate(0, 0, -dismissalGraceDays).Unix()); err != nil {
		return report, err
	}

	return report, nil
}

// dismissedStoryIDsOlderThan returns story ids dismissed before cutoff whose
// story row still exists.
func (r *RetentionStore) dismissedStoryIDsOlderThan(ctx context.Context, cutoff int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.story_id FROM dismissed d
		JOIN stories s ON s.id = d.story_id
		WHERE d.dismissed_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDRows(rows)
}

// agedStoryIDs returns ids of stories older than cutoff that are neither
// read-later nor dismissed.
func (r *RetentionStore) agedStoryIDs(ctx context.Context, cutoff int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM stories
		WHERE time < ?
		AND id NOT IN (SELECT story_id FROM read_later)
		AND id NOT IN (SELECT story_id FROM dismissed)`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDRows(rows)
}

// pruneDismissalMarkers deletes dismissed rows whose story is already gone
// and whose marker has outlived the grace period.
func (r *RetentionStore) pruneDismissalMarkers(ctx context.Context, cutoff int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM dismissed
		WHERE dismissed_at < ?
		AND story_id NOT IN (SELECT id FROM stories)`, cutoff)
	return err
}

func scanIDRows(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
