package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgoyal/smartreader/hn"
	"github.com/abgoyal/smartreader/store"
)

// frontPageSize is how many top-stories ids count as "the front page".
const frontPageSize = 30

// FrontPageTracker periodically polls the HN top-stories list and annotates
// matching stories with their best-seen rank.
type FrontPageTracker struct {
	stories  *store.StoryStore
	firebase *hn.FirebaseClient
	interval time.Duration
}

func NewFrontPageTracker(stories *store.StoryStore, firebase *hn.FirebaseClient, intervalMinutes int) *FrontPageTracker {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &FrontPageTracker{stories: stories, firebase: firebase, interval: time.Duration(intervalMinutes) * time.Minute}
}

func (t *FrontPageTracker) Run(ctx context.Context) {
	t.runOnce(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runOnce(ctx)
		}
	}
}

func (t *FrontPageTracker) runOnce(ctx context.Context) {
	ids, err := t.firebase.TopStoryIDs(ctx)
	if err != nil {
		slog.Error("front-page tracker: fetch top stories failed", "error", err)
		return
	}

	if len(ids) > frontPageSize {
		ids = ids[:frontPageSize]
	}

	for i, id := range ids {
		rank := i + 1
		if err := t.stories.MarkFrontPage(ctx, id, rank); err != nil {
			slog.Error("front-page tracker: mark failed", "story_id", id, "error", err)
		}
	}
}
