package api

import (
	"net/http"
	"strconv"

	"github.com/abgoyal/smartreader/store"
)

type RulesHandler struct {
	rules *store.RulesStore
}

func NewRulesHandler(rules *store.RulesStore) *RulesHandler {
	return &RulesHandler{rules: rules}
}

func weightFromQuery(r *http.Request) int {
	weight := 1
	if w, err := strconv.Atoi(r.URL.Query().Get("weight")); err == nil && w != 0 {
		weight = w
	}
	return weight
}

func (h *RulesHandler) MeritWords(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.rules.AddMeritWord(r.Context(), word, weightFromQuery(r))
	case http.MethodDelete:
		err = h.rules.RemoveMeritWord(r.Context(), word)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondOK(w, r, err)
}

func (h *RulesHandler) DemeritWords(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.rules.AddDemeritWord(r.Context(), word, weightFromQuery(r))
	case http.MethodDelete:
		err = h.rules.RemoveDemeritWord(r.Context(), word)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondOK(w, r, err)
}

func (h *RulesHandler) MeritDomains(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.rules.AddMeritDomain(r.Context(), domain, weightFromQuery(r))
	case http.MethodDelete:
		err = h.rules.RemoveMeritDomain(r.Context(), domain)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondOK(w, r, err)
}

func (h *RulesHandler) DemeritDomains(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	var err error
	switch r.Method {
	case http.MethodPost:
		err = h.rules.AddDemeritDomain(r.Context(), domain, weightFromQuery(r))
	case http.MethodDelete:
		err = h.rules.RemoveDemeritDomain(r.Context(), domain)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondOK(w, r, err)
}

func (h *RulesHandler) BlockedWords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		words, err := h.rules.ListBlockedWords(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, r, map[string]interface{}{"words": words})
	case http.MethodPost:
		respondOK(w, r, h.rules.BlockWord(r.Context(), r.PathValue("word")))
	case http.MethodDelete:
		respondOK(w, r, h.rules.UnblockWord(r.Context(), r.PathValue("word")))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *RulesHandler) BlockedDomains(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		domains, err := h.rules.ListBlockedDomains(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, r, map[string]interface{}{"domains": domains})
	case http.MethodPost:
		respondOK(w, r, h.rules.BlockDomain(r.Context(), r.PathValue("domain")))
	case http.MethodDelete:
		respondOK(w, r, h.rules.UnblockDomain(r.Context(), r.PathValue("domain")))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, map[string]bool{"ok": true})
}
