package store

import (
	"context"
	"testing"
	"time"
)

func TestRetentionCleanupDeletesAgedDismissedStory(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	retention := NewRetentionStore(stories.db, CleanupHorizons{DismissedHours: 1, StoryDays: 9999, URLCacheDays: 9999})

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "t", URL: strPtr("https://a.com"), Author: "a", Time: time.Now().Unix()},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}

	oldDismissedAt := time.Now().Add(-2 * time.Hour).Unix()
	if _, err := stories.db.ExecContext(ctx, `INSERT INTO dismissed (story_id, dismissed_at) VALUES (?, ?)`, 1, oldDismissedAt); err != nil {
		t.Fatalf("seed dismissed: %v", err)
	}

	report, err := retention.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if report.DismissedDeleted != 1 {
		t.Errorf("DismissedDeleted = %d, want 1", report.DismissedDeleted)
	}

	st, err := stories.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if st != nil {
		t.Error("expected story deleted")
	}
}

func TestRetentionCleanupSkipsReadLaterAndDismissedFromAgedDeletion(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	users := NewUserStateStore(stories.db)
	retention := NewRetentionStore(stories.db, CleanupHorizons{DismissedHours: 9999, StoryDays: 1, URLCacheDays: 9999})

	oldTime := time.Now().AddDate(0, 0, -30).Unix()
	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "read later", URL: strPtr("https://a.com"), Author: "a", Time: oldTime},
		{ID: 2, Title: "plain old", URL: strPtr("https://b.com"), Author: "b", Time: oldTime},
		{ID: 3, Title: "dismissed", URL: strPtr("https://c.com"), Author: "c", Time: oldTime},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}
	if err := users.AddReadLater(ctx, 1); err != nil {
		t.Fatalf("AddReadLater: %v", err)
	}
	if err := users.Dismiss(ctx, 3); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	if _, err := retention.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	st1, err := stories.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID 1: %v", err)
	}
	if st1 == nil {
		t.Error("expected read-later story preserved")
	}

	st2, err := stories.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByID 2: %v", err)
	}
	if st2 != nil {
		t.Error("expected aged plain story deleted")
	}

	st3, err := stories.GetByID(ctx, 3)
	if err != nil {
		t.Fatalf("GetByID 3: %v", err)
	}
	if st3 == nil {
		t.Error("expected dismissed story preserved by aged deletion")
	}
}

func TestPruneDismissalMarkersRequiresGoneStoryAndGracePeriod(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	retention := NewRetentionStore(stories.db, CleanupHorizons{DismissedHours: 9999, StoryDays: 9999, URLCacheDays: 9999})

	// story 1 already gone, marker within grace period: must NOT be pruned.
	recentCutoffViolator := time.Now().Add(-1 * time.Hour).Unix()
	if _, err := stories.db.ExecContext(ctx, `INSERT INTO dismissed (story_id, dismissed_at) VALUES (?, ?)`, 1, recentCutoffViolator); err != nil {
		t.Fatalf("seed dismissed 1: %v", err)
	}

	// story 2 already gone, marker past grace period: should be pruned.
	oldEnough := time.Now().AddDate(0, 0, -(dismissalGraceDays + 1)).Unix()
	if _, err := stories.db.ExecContext(ctx, `INSERT INTO dismissed (story_id, dismissed_at) VALUES (?, ?)`, 2, oldEnough); err != nil {
		t.Fatalf("seed dismissed 2: %v", err)
	}

	if _, err := retention.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	var count1, count2 int
	if err := stories.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dismissed WHERE story_id = ?`, 1).Scan(&count1); err != nil {
		t.Fatalf("count 1: %v", err)
	}
	if err := stories.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dismissed WHERE story_id = ?`, 2).Scan(&count2); err != nil {
		t.Fatalf("count 2: %v", err)
	}
	if count1 != 1 {
		t.Error("expected marker within grace period preserved")
	}
	if count2 != 0 {
		t.Error("expected marker past grace period pruned")
	}
}
