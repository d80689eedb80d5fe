package api

import (
	"database/sql"
	"net/http"

	"github.com/abgoyal/smartreader/store"
)

type HealthHandler struct {
	db      *sql.DB
	stories *store.StoryStore
}

func NewHealthHandler(db *sql.DB, stories *store.StoryStore) *HealthHandler {
	return &HealthHandler{db: db, stories: stories}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	count, _ := h.stories.Count(r.Context())
	maxTime, _, _ := h.stories.MaxTime(r.Context())

	resp := map[string]interface{}{
		"status":        "ok",
		"stories_count": count,
		"last_poll":     maxTime,
	}
	writeJSON(w, r, resp)
}
