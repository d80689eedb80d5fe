package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const algoliaBaseURL = "https://hn.algolia.com/api/v1/search_by_date"

// maxWindowHits is the heuristic ceiling the Algolia search endpoint imposes
// on a single numeric-filter window; see open question (d).
const maxWindowHits = 1000

const maxPagesPerWindow = 10

// AlgoliaClient is the primary ingestion transport: HN's search-by-date API,
// windowed by created_at_i to page through everything since a checkpoint.
type AlgoliaClient struct {
	http    *http.Client
	baseURL string
}

// AlgoliaOption customizes an AlgoliaClient at construction time. The only
// current use is pointing a test client at an httptest.Server.
type AlgoliaOption func(*AlgoliaClient)

// WithAlgoliaBaseURL overrides the search endpoint; used only by tests.
func WithAlgoliaBaseURL(url string) AlgoliaOption {
	return func(c *AlgoliaClient) { c.baseURL = url }
}

func NewAlgoliaClient(opts ...AlgoliaOption) *AlgoliaClient {
	c := &AlgoliaClient{http: &http.Client{Timeout: 30 * time.Second}, baseURL: algoliaBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

// SearchSince returns every story created after sinceTime, ascending by
// time (so a crash mid-insert still advances the derived checkpoint
// monotonically). It windows by upper bound, re-windowing whenever a window
// returns ≥1000 hits, until the oldest hit in a batch is ≤ sinceTime or a
// batch comes back short.
func (c *AlgoliaClient) SearchSince(ctx context.Context, sinceTime int64) ([]Item, error) {
	var all []Item
	upper := int64(0) // 0 means "no upper bound" for the first window

	for {
		batch, err := c.searchWindow(ctx, sinceTime, upper)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)

		oldest := batch[0].Time
		for _, it := range batch {
			if it.Time < oldest {
				oldest = it.Time
			}
		}

		if len(batch) < maxWindowHits || oldest <= sinceTime {
			break
		}
		upper = oldest
	}

	sortItemsAscending(all)
	return dedupByID(all), nil
}

// searchWindow fetches up to maxPagesPerWindow pages of 100 hits each for
// the window (sinceTime, upper), both bounds exclusive, upper==0 meaning
// unbounded above.
func (c *AlgoliaClient) searchWindow(ctx context.Context, sinceTime, upper int64) ([]Item, error) {
	var out []Item
	for page := 0; page < maxPagesPerWindow; page++ {
		filter := fmt.Sprintf("created_at_i>%d", sinceTime)
		if upper > 0 {
			filter += fmt.Sprintf(",created_at_i<%d", upper)
		}
		url := fmt.Sprintf("%s?tags=story&numericFilters=%s&hitsPerPage=100&page=%d", c.baseURL, filter, page)

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("search stories: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("search stories: unexpected status %d", resp.StatusCode)
		}

		var ar algoliaResponse
		err = json.NewDecoder(resp.Body).Decode(&ar)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}

		if len(ar.Hits) == 0 {
			break
		}

		for _, h := range ar.Hits {
			if len(h.Tags) > 0 && !h.isStory() {
				continue
			}
			id, err := strconv.ParseInt(h.ObjectID, 10, 64)
			if err != nil {
				continue
			}
			title := h.Title
			if title == "" {
				title = "[no title]"
			}
			author := h.Author
			if author == "" {
				author = "[deleted]"
			}
			out = append(out, Item{
				ID:          id,
				Type:        "story",
				By:          author,
				Time:        h.CreatedAtI,
				Text:        h.StoryText,
				URL:         h.URL,
				Title:       title,
				Score:       h.Points,
				Descendants: h.NumComments,
			})
		}

		if len(ar.Hits) < 100 {
			break
		}
	}
	return out, nil
}

func sortItemsAscending(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Time < items[j].Time })
}

func dedupByID(items []Item) []Item {
	seen := make(map[int64]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
