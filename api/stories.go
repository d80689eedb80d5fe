package api

import (
	"net/http"
	"strconv"

	"github.com/abgoyal/smartreader/store"
)

type StoriesHandler struct {
	stories   *store.StoryStore
	userState *store.UserStateStore
}

func NewStoriesHandler(stories *store.StoryStore, userState *store.UserStateStore) *StoriesHandler {
	return &StoriesHandler{stories: stories, userState: userState}
}

// List handles GET /api/stories.
func (h *StoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := store.ListQuery{
		DismissedOnly:    q.Has("dismissed_only"),
		IncludeBlocked:   q.Has("include_blocked"),
		IncludeReadLater: q.Has("include_read_later"),
		ReadLaterOnly:    q.Has("read_later_only"),
		Sort:             q.Get("sort"),
		Cursor:           q.Get("cursor"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		query.Limit = limit
	}

	result, err := h.stories.ListFiltered(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, r, map[string]interface{}{
		"stories":     result.Stories,
		"next_cursor": result.NextCursor,
		"has_more":    result.HasMore,
	})
}

// Get handles GET /api/story/{id}.
func (h *StoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	st, err := h.stories.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, r, st)
}

// GetContent handles GET /api/story/{id}/content.
func (h *StoriesHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	st, err := h.stories.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, r, map[string]interface{}{
		"content_status": st.ContentStatus,
		"content":        st.DecodedContent(),
		"teaser":         st.Teaser,
	})
}

// MarkOpened handles POST /api/story/{id}/opened.
func (h *StoriesHandler) MarkOpened(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.userState.RecordOpened(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}
