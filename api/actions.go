package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/abgoyal/smartreader/store"
)

type ActionsHandler struct {
	userState *store.UserStateStore
	rules     *store.RulesStore
}

func NewActionsHandler(userState *store.UserStateStore, rules *store.RulesStore) *ActionsHandler {
	return &ActionsHandler{userState: userState, rules: rules}
}

func (h *ActionsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var actionErr error
	switch r.Method {
	case http.MethodPost:
		actionErr = h.userState.Dismiss(r.Context(), id)
	case http.MethodDelete:
		actionErr = h.userState.Undismiss(r.Context(), id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if actionErr != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}

func (h *ActionsHandler) ClearDismissed(w http.ResponseWriter, r *http.Request) {
	if err := h.userState.ClearDismissed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}

func (h *ActionsHandler) ReadLater(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var actionErr error
	switch r.Method {
	case http.MethodPost:
		actionErr = h.userState.AddReadLater(r.Context(), id)
	case http.MethodDelete:
		actionErr = h.userState.RemoveReadLater(r.Context(), id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if actionErr != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}

func (h *ActionsHandler) ListReadLater(w http.ResponseWriter, r *http.Request) {
	ids, err := h.userState.ListReadLater(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]interface{}{"story_ids": ids})
}

// BatchRequest batches dismiss/readlater/block-domain actions in one call.
type BatchRequest struct {
	Dismiss      []int64  `json:"dismiss"`
	ReadLater    []int64  `json:"read_later"`
	BlockDomains []string `json:"block_domains"`
}

func (h *ActionsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed batch")
		return
	}

	ctx := r.Context()
	for _, id := range req.Dismiss {
		if err := h.userState.Dismiss(ctx, id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	for _, id := range req.ReadLater {
		if err := h.userState.AddReadLater(ctx, id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	for _, domain := range req.BlockDomains {
		if err := h.rules.BlockDomain(ctx, domain); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, r, map[string]bool{"ok": true})
}
