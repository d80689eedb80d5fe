package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abgoyal/smartreader/store"
)

func newTestRulesHandler(t *testing.T) *RulesHandler {
	t.Helper()
	db := newTestDB(t)
	return NewRulesHandler(store.NewRulesStore(db))
}

func TestRulesMeritWordsAddAndRemove(t *testing.T) {
	h := newTestRulesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rules/merit-words/golang?weight=3", nil)
	req.SetPathValue("word", "golang")
	rec := httptest.NewRecorder()
	h.MeritWords(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/rules/merit-words/golang", nil)
	req.SetPathValue("word", "golang")
	rec = httptest.NewRecorder()
	h.MeritWords(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want 200", rec.Code)
	}
}

func TestRulesDemeritDomains(t *testing.T) {
	h := newTestRulesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rules/demerit-domains/spam.com", nil)
	req.SetPathValue("domain", "spam.com")
	rec := httptest.NewRecorder()
	h.DemeritDomains(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRulesBlockedWordsListAndMutate(t *testing.T) {
	h := newTestRulesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rules/blocked-words/crypto", nil)
	req.SetPathValue("word", "crypto")
	rec := httptest.NewRecorder()
	h.BlockedWords(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("block status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rules/blocked-words", nil)
	rec = httptest.NewRecorder()
	h.BlockedWords(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	words, ok := body["words"].([]any)
	if !ok || len(words) != 1 || words[0] != "crypto" {
		t.Errorf("words = %v, want [crypto]", body["words"])
	}
}

func TestRulesBlockedDomainsMethodNotAllowed(t *testing.T) {
	h := newTestRulesHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/rules/blocked-domains", nil)
	rec := httptest.NewRecorder()
	h.BlockedDomains(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
