package api

import (
	"net/http"
	"sync/atomic"

	"github.com/abgoyal/smartreader/worker"
)

// FetchHandler serves POST /api/fetch, triggering an immediate ingestion
// pass. A trigger that arrives while one is already running is refused
// outright rather than queued or shared, so the caller always knows whether
// its own request ran.
type FetchHandler struct {
	ingestor *worker.Ingestor
	inFlight atomic.Bool
}

func NewFetchHandler(ingestor *worker.Ingestor) *FetchHandler {
	return &FetchHandler{ingestor: ingestor}
}

func (h *FetchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if !h.inFlight.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "fetch already in progress")
		return
	}
	defer h.inFlight.Store(false)

	if err := h.ingestor.RunOnce(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}
