package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(baseURL string) *Client {
	return &Client{accountID: "acct", apiToken: "token", navTimeout: defaultNavTimeoutMs, baseURL: baseURL}
}

func TestRenderSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-browser-ms-used", "1234")
		json.NewEncoder(w).Encode(renderResponse{Success: true, Result: strings.Repeat("article content ", 10)})
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusDone {
		t.Errorf("Status = %q, want done", result.Status)
	}
	if result.BilledMs != 1234 {
		t.Errorf("BilledMs = %d, want 1234", result.BilledMs)
	}
}

func TestRenderEmptyResultIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Success: true, Result: "short"})
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed (below minResultLen)", result.Status)
	}
}

func TestRenderBlockedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Success: true, Result: strings.Repeat("x", 100) + " please verify you are human " + strings.Repeat("y", 60)})
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusBlocked {
		t.Errorf("Status = %q, want blocked", result.Status)
	}
}

func TestRenderRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited, try again later"))
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusRateLimited {
		t.Errorf("Status = %q, want rate_limited", result.Status)
	}
	if result.RetryAfter.Seconds() != 30 {
		t.Errorf("RetryAfter = %v, want 30s", result.RetryAfter)
	}
}

func TestRenderQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("Time limit exceeded for today, come back tomorrow"))
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusQuotaExceeded {
		t.Errorf("Status = %q, want quota_exceeded", result.Status)
	}
}

func TestRenderServerErrorIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
}

func TestRenderEnvelopeFailureIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Success: false, Errors: []string{"navigation timeout"}})
	}))
	defer server.Close()

	result := testClient(server.URL).Render(context.Background(), "https://example.com")
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
}

func TestParseBilledMs(t *testing.T) {
	if got := parseBilledMs(""); got != 0 {
		t.Errorf("parseBilledMs(empty) = %d, want 0", got)
	}
	if got := parseBilledMs("1500.5"); got != 1500 {
		t.Errorf("parseBilledMs(1500.5) = %d, want 1500", got)
	}
	if got := parseBilledMs("not-a-number"); got != 0 {
		t.Errorf("parseBilledMs(invalid) = %d, want 0", got)
	}
}
