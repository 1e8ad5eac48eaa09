package api

import "net/http"

type onceReturnValueBody struct {
	OnceReturnValue any `json:"once_return_value"`
}

func (s *Server) handleGetOnceReturnValue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, onceReturnValueBody{OnceReturnValue: s.eventSvc.OnceReturnValue(r.Context())})
}

// handleSetOnceReturnValue replaces the value that detaches a listener when
// returned. The key must be present; null is a valid value.
func (s *Server) handleSetOnceReturnValue(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	v, ok := body["once_return_value"]
	if !ok {
		writeError(w, http.StatusBadRequest, "once_return_value is required")
		return
	}

	set, err := s.eventSvc.SetOnceReturnValue(r.Context(), v)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onceReturnValueBody{OnceReturnValue: set})
}
