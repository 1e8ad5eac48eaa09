package api

import (
	"net/http"

	"github.com/shaharia-lab/emitter/internal/service"
)

type defineEventsRequest struct {
	Keys []string `json:"keys"`
}

// handleListEvents returns every registry key with its listener count.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.eventSvc.ListEvents(r.Context())
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleDefineEvents creates keys that do not exist yet.
func (s *Server) handleDefineEvents(w http.ResponseWriter, r *http.Request) {
	var req defineEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	if err := s.eventSvc.DefineEvents(r.Context(), req.Keys); err != nil {
		httpErr(w, err)
		return
	}

	events, err := s.eventSvc.ListEvents(r.Context())
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, events)
}

// handleRemoveEvents removes the keys a selector resolves to. Clearing the
// whole registry needs all=true.
func (s *Server) handleRemoveEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec := service.SelectorSpec{Selector: q.Get("selector"), Pattern: q.Get("pattern")}
	if spec.Selector == "" && q.Get("all") != "true" {
		writeError(w, http.StatusBadRequest, "selector is required (use all=true to clear every event)")
		return
	}

	if err := s.eventSvc.RemoveEvent(r.Context(), spec); err != nil {
		httpErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
