package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/emitter/internal/service"
)

// handleListSubscribers returns all subscribers in creation order.
func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.eventSvc.ListSubscribers(r.Context())
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// handleCreateSubscriber registers a new listener with its own inbox.
func (s *Server) handleCreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req service.SubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	sub, err := s.eventSvc.CreateSubscriber(r.Context(), req)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	sub, err := s.eventSvc.GetSubscriber(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// handleDeleteSubscriber detaches the subscriber from every key.
func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	if err := s.eventSvc.DeleteSubscriber(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeliveries returns the subscriber's inbox. drain=true empties it.
func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	drain := false
	if v := r.URL.Query().Get("drain"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "drain must be a boolean")
			return
		}
		drain = parsed
	}

	deliveries, err := s.eventSvc.Deliveries(r.Context(), chi.URLParam(r, "id"), drain)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}
