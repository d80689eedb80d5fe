package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abgoyal/smartreader/store"
)

func TestStatsCounts(t *testing.T) {
	db := newTestDB(t)
	stories := store.NewStoryStore(db)
	usage := store.NewUsageStore(db)
	h := NewStatsHandler(stories, usage)

	if err := stories.UpsertIngested(context.Background(), []store.IngestItem{
		{ID: 1, Title: "t", Author: "a", Time: 1, URL: strPtr("https://x.com")},
		{ID: 2, Title: "t2", Author: "a", Time: 2, URL: strPtr("https://y.com")},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["stories_count"] != float64(2) {
		t.Errorf("stories_count = %v, want 2", body["stories_count"])
	}
}

func TestStatsUsage(t *testing.T) {
	db := newTestDB(t)
	usage := store.NewUsageStore(db)
	h := NewStatsHandler(store.NewStoryStore(db), usage)

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	rec := httptest.NewRecorder()
	h.Usage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatsStatusEmptyStore(t *testing.T) {
	db := newTestDB(t)
	h := NewStatsHandler(store.NewStoryStore(db), store.NewUsageStore(db))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["has_stories"] != false {
		t.Errorf("has_stories = %v, want false", body["has_stories"])
	}
}
