package api

import (
	"net/http"

	"github.com/abgoyal/smartreader/store"
)

type StatsHandler struct {
	stories *store.StoryStore
	usage   *store.UsageStore
}

func NewStatsHandler(stories *store.StoryStore, usage *store.UsageStore) *StatsHandler {
	return &StatsHandler{stories: stories, usage: usage}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.stories.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]interface{}{"stories_count": count})
}

func (h *StatsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.usage.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]interface{}{"months": summary})
}

func (h *StatsHandler) Status(w http.ResponseWriter, r *http.Request) {
	maxTime, hasStories, err := h.stories.MaxTime(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]interface{}{
		"last_story_time": maxTime,
		"has_stories":     hasStories,
	})
}
