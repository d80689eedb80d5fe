package store

import (
	"context"
	"testing"
)

func TestListFilteredOrderingAndScoring(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	rules := NewRulesStore(stories.db)

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "Boring post about rust", URL: strPtr("https://rust-lang.org/a"), Author: "a", Time: 100},
		{ID: 2, Title: "Exciting launch", URL: strPtr("https://spam.example/b"), Author: "b", Time: 200},
		{ID: 3, Title: "Another one", URL: strPtr("https://news.ycombinator.com/c"), Author: "c", Time: 300},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}

	if err := rules.AddMeritDomain(ctx, "rust-lang.org", 5); err != nil {
		t.Fatalf("AddMeritDomain: %v", err)
	}
	if err := rules.AddDemeritWord(ctx, "exciting", 2); err != nil {
		t.Fatalf("AddDemeritWord: %v", err)
	}

	res, err := stories.ListFiltered(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListFiltered: %v", err)
	}
	if len(res.Stories) != 3 {
		t.Fatalf("len(Stories) = %d, want 3", len(res.Stories))
	}
	// newest first by default
	if res.Stories[0].ID != 3 || res.Stories[1].ID != 2 || res.Stories[2].ID != 1 {
		t.Errorf("order = %v, want [3,2,1]", []int64{res.Stories[0].ID, res.Stories[1].ID, res.Stories[2].ID})
	}

	for _, st := range res.Stories {
		switch st.ID {
		case 1:
			if st.DomainMerit != 5 {
				t.Errorf("story 1 DomainMerit = %d, want 5", st.DomainMerit)
			}
		case 2:
			if st.WordDemerit != 2 {
				t.Errorf("story 2 WordDemerit = %d, want 2", st.WordDemerit)
			}
		}
	}
}

func TestListFilteredExcludesBlockedDomainByDefault(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	rules := NewRulesStore(stories.db)

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "a", URL: strPtr("https://blocked.example/a"), Author: "a", Time: 100},
		{ID: 2, Title: "b", URL: strPtr("https://ok.example/b"), Author: "b", Time: 200},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}
	if err := rules.BlockDomain(ctx, "blocked.example"); err != nil {
		t.Fatalf("BlockDomain: %v", err)
	}

	res, err := stories.ListFiltered(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListFiltered: %v", err)
	}
	if len(res.Stories) != 1 || res.Stories[0].ID != 2 {
		t.Errorf("stories = %+v, want only id 2", res.Stories)
	}
}

func TestListFilteredDedupsByURL(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "dup a", URL: strPtr("https://example.com/same"), Author: "a", Time: 100},
		{ID: 2, Title: "dup b", URL: strPtr("https://example.com/same"), Author: "b", Time: 200},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}

	res, err := stories.ListFiltered(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListFiltered: %v", err)
	}
	if len(res.Stories) != 1 {
		t.Fatalf("len(Stories) = %d, want 1 (deduped by URL)", len(res.Stories))
	}
	if res.Stories[0].ID != 2 {
		t.Errorf("surviving story = %d, want the newer (2)", res.Stories[0].ID)
	}
}

func TestListFilteredExcludesDismissedByDefault(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	users := NewUserStateStore(stories.db)

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "a", URL: strPtr("https://a.com"), Author: "a", Time: 100},
		{ID: 2, Title: "b", URL: strPtr("https://b.com"), Author: "b", Time: 200},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}
	if err := users.Dismiss(ctx, 1); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	res, err := stories.ListFiltered(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListFiltered: %v", err)
	}
	if len(res.Stories) != 1 || res.Stories[0].ID != 2 {
		t.Errorf("stories = %+v, want only id 2", res.Stories)
	}

	dismissedOnly, err := stories.ListFiltered(ctx, ListQuery{Limit: 10, DismissedOnly: true})
	if err != nil {
		t.Fatalf("ListFiltered dismissed-only: %v", err)
	}
	if len(dismissedOnly.Stories) != 1 || dismissedOnly.Stories[0].ID != 1 {
		t.Errorf("dismissed-only stories = %+v, want only id 1", dismissedOnly.Stories)
	}
}

func TestListFilteredReadLaterOnly(t *testing.T) {
	ctx := context.Background()
	stories := newTestDB(t)
	users := NewUserStateStore(stories.db)

	if err := stories.UpsertIngested(ctx, []IngestItem{
		{ID: 1, Title: "a", URL: strPtr("https://a.com"), Author: "a", Time: 100},
		{ID: 2, Title: "b", URL: strPtr("https://b.com"), Author: "b", Time: 200},
	}); err != nil {
		t.Fatalf("UpsertIngested: %v", err)
	}
	if err := users.AddReadLater(ctx, 2); err != nil {
		t.Fatalf("AddReadLater: %v", err)
	}

	res, err := stories.ListFiltered(ctx, ListQuery{Limit: 10, ReadLaterOnly: true})
	if err != nil {
		t.Fatalf("ListFiltered: %v", err)
	}
	if len(res.Stories) != 1 || res.Stories[0].ID != 2 {
		t.Errorf("read-later-only stories = %+v, want only id 2", res.Stories)
	}

	excluded, err := stories.ListFiltered(ctx, ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListFiltered default: %v", err)
	}
	if len(excluded.Stories) != 1 || excluded.Stories[0].ID != 1 {
		t.Errorf("default listing should exclude read-later story 2, got %+v", excluded.Stories)
	}
}
