package api

import (
	"net/http"

	"github.com/shaharia-lab/emitter/internal/service"
)

// handleEmit dispatches arguments to the listeners of a selector.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req service.EmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	res, err := s.eventSvc.Emit(r.Context(), req)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
