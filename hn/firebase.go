package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const firebaseBaseURL = "https://hacker-news.firebaseio.com/v0"

// FirebaseClient is the fallback ingestion transport and the front-page
// tracker's only transport. Concurrency is capped the same way the teacher
// caps its Firebase fetches: a fixed-size semaphore shared across calls.
type FirebaseClient struct {
	http    *http.Client
	sem     chan struct{}
	baseURL string
}

// FirebaseOption customizes a FirebaseClient at construction time. The only
// current use is pointing a test client at an httptest.Server.
type FirebaseOption func(*FirebaseClient)

// WithFirebaseBaseURL overrides the API root; used only by tests.
func WithFirebaseBaseURL(url string) FirebaseOption {
	return func(c *FirebaseClient) { c.baseURL = url }
}

func NewFirebaseClient(opts ...FirebaseOption) *FirebaseClient {
	c := &FirebaseClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		sem:     make(chan struct{}, 10),
		baseURL: firebaseBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FirebaseClient) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *FirebaseClient) release() { <-c.sem }

// NewStoryIDs returns the current new-stories id list.
func (c *FirebaseClient) NewStoryIDs(ctx context.Context) ([]int64, error) {
	return c.fetchIDList(ctx, c.baseURL+"/newstories.json")
}

// TopStoryIDs returns the current top-stories id list, consumed by the
// front-page tracker.
func (c *FirebaseClient) TopStoryIDs(ctx context.Context) ([]int64, error) {
	return c.fetchIDList(ctx, c.baseURL+"/topstories.json")
}

func (c *FirebaseClient) fetchIDList(ctx context.Context, url string) ([]int64, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch id list: %w", err)
	}
	defer resp.Body.Close()

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	return ids, nil
}

// GetItem fetches and normalizes a single item.
func (c *FirebaseClient) GetItem(ctx context.Context, id int64) (*Item, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/item/%d.json", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request for item %d: %w", id, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	defer resp.Body.Close()

	var fi firebaseItem
	if err := json.NewDecoder(resp.Body).Decode(&fi); err != nil {
		return nil, fmt.Errorf("decode item %d: %w", id, err)
	}
	item := fi.toItem()
	return &item, nil
}

// GetItems fetches multiple items concurrently (bounded by the shared
// semaphore) and returns them in request order; a failed fetch leaves a nil
// at its position rather than failing the whole call.
func (c *FirebaseClient) GetItems(ctx context.Context, ids []int64) []*Item {
	results := make([]*Item, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(idx int, itemID int64) {
			defer wg.Done()
			item, err := c.GetItem(ctx, itemID)
			if err != nil {
				return
			}
			results[idx] = item
		}(i, id)
	}
	wg.Wait()
	return results
}

// NewStoriesSince walks the new-stories id list (newest first), fetching
// items one at a time and stopping as soon as one's time is ≤ sinceTime or
// the 500-item provider ceiling is reached. Best-effort fallback path, used
// when the primary transport returns an error for an ingestion pass; a fresh
// checkpoint stops the walk after a handful of items instead of always
// paying for up to 500 fetches.
func (c *FirebaseClient) NewStoriesSince(ctx context.Context, sinceTime int64) ([]Item, error) {
	ids, err := c.NewStoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch new story ids: %w", err)
	}
	if len(ids) > 500 {
		ids = ids[:500]
	}

	var out []Item
	for _, id := range ids {
		item, err := c.GetItem(ctx, id)
		if err != nil {
			continue
		}
		if item.Time <= sinceTime {
			break
		}
		if item.Type != "" && item.Type != "story" {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}
