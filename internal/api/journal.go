package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/emitter/internal/scheduler"
	"github.com/shaharia-lab/emitter/internal/service"
	"github.com/shaharia-lab/emitter/internal/storage"
)

// handleJournal lists recorded emissions, newest first.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.EmissionFilter{
		Selector: q.Get("selector"),
		Source:   q.Get("source"),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	emissions, err := s.eventSvc.Journal(r.Context(), filter)
	if err != nil {
		httpErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emissions)
}

// handleListSchedules returns the scheduler's jobs, or an empty list when no
// scheduler runs.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	if s.schedules == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.schedules.Jobs())
}

func (s *Server) handleUnschedule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.schedules == nil || !s.schedules.Unschedule(name) {
		httpErr(w, &service.NotFoundError{Resource: "schedule", ID: name})
		return
	}
	s.logger.Info("schedule cancelled", "name", name)
	w.WriteHeader(http.StatusNoContent)
}
