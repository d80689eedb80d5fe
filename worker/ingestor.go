package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgoyal/smartreader/hn"
	"github.com/abgoyal/smartreader/store"
)

// defaultLookbackHours is used as the ingestion checkpoint when the store
// is empty.
const defaultLookbackHours = 80

// Ingestor periodically discovers new stories since the derived checkpoint
// and upserts them. It prefers the Algolia search API and falls back to the
// Firebase new-stories feed whenever the Algolia pass returns an error; a
// failure on a later page or window triggers the fallback the same way as a
// failure on the first request, and the Algolia hits already fetched in that
// pass are discarded.
type Ingestor struct {
	stories  *store.StoryStore
	algolia  *hn.AlgoliaClient
	firebase *hn.FirebaseClient
	interval time.Duration
}

func NewIngestor(stories *store.StoryStore, algolia *hn.AlgoliaClient, firebase *hn.FirebaseClient, intervalMinutes int) *Ingestor {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return &Ingestor{
		stories:  stories,
		algolia:  algolia,
		firebase: firebase,
		interval: time.Duration(intervalMinutes) * time.Minute,
	}
}

// Run fetches once immediately, then on every wall-clock interval boundary
// (e.g. each hour mark for the 60-minute default), until ctx is cancelled.
func (ing *Ingestor) Run(ctx context.Context) {
	ing.RunOnce(ctx)

	timer := time.NewTimer(untilNextBoundary(time.Now(), ing.interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			ing.RunOnce(ctx)
			timer.Reset(untilNextBoundary(time.Now(), ing.interval))
		}
	}
}

// untilNextBoundary returns the duration until the next wall-clock multiple
// of interval strictly after now, so periodic runs land on the boundary
// (e.g. :00 of every hour) rather than drifting to whatever moment the
// process happened to start.
func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}

// RunOnce executes a single ingestion pass and returns its error, if any, so
// the API's on-demand fetch trigger (POST /api/fetch) can surface a
// synchronous failure as a 500 while the periodic caller just logs it.
func (ing *Ingestor) RunOnce(ctx context.Context) error {
	since, err := ing.checkpoint(ctx)
	if err != nil {
		slog.Error("ingestor: checkpoint lookup failed", "error", err)
		return fmt.Errorf("checkpoint lookup: %w", err)
	}

	items, err := ing.algolia.SearchSince(ctx, since)
	if err != nil {
		slog.Warn("ingestor: primary path failed, falling back to firebase", "error", err)
		items, err = ing.firebase.NewStoriesSince(ctx, since)
		if err != nil {
			slog.Error("ingestor: fallback path failed", "error", err)
			return fmt.Errorf("fallback ingestion: %w", err)
		}
	}

	if len(items) == 0 {
		slog.Info("ingestor: no new stories", "since", since)
		return nil
	}

	batch := make([]store.IngestItem, len(items))
	for i, it := range items {
		batch[i] = toIngestItem(it)
	}

	if err := ing.stories.UpsertIngested(ctx, batch); err != nil {
		slog.Error("ingestor: upsert failed", "error", err, "count", len(batch))
		return fmt.Errorf("upsert: %w", err)
	}

	slog.Info("ingestor: upserted stories", "count", len(batch), "since", since)
	return nil
}

func (ing *Ingestor) checkpoint(ctx context.Context) (int64, error) {
	maxTime, ok, err := ing.stories.MaxTime(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return time.Now().Add(-defaultLookbackHours * time.Hour).Unix(), nil
	}
	return maxTime, nil
}

func toIngestItem(it hn.Item) store.IngestItem {
	var url *string
	if it.URL != "" {
		u := it.URL
		url = &u
	}
	var text *string
	if it.Text != "" {
		t := it.Text
		text = &t
	}
	return store.IngestItem{
		ID:          it.ID,
		Title:       it.Title,
		URL:         url,
		Text:        text,
		Author:      it.By,
		Time:        it.Time,
		Score:       it.Score,
		Descendants: it.Descendants,
	}
}
