package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/shaharia-lab/emitter/emitter"
	"github.com/shaharia-lab/emitter/internal/scheduler"
	"github.com/shaharia-lab/emitter/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const errInvalidJSONBody = "invalid JSON body"

// Schedules reports and cancels scheduled emits. *scheduler.Scheduler satisfies it.
type Schedules interface {
	Jobs() []scheduler.JobStatus
	Unschedule(name string) bool
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	eventSvc  service.EventService
	schedules Schedules
	logger    *slog.Logger
}

// New creates a new API Server backed by the event service. schedules may be nil.
func New(eventSvc service.EventService, schedules Schedules, logger *slog.Logger) *Server {
	return &Server{
		eventSvc:  eventSvc,
		schedules: schedules,
		logger:    logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Registry keys
	r.Get("/events", s.handleListEvents)
	r.Post("/events", s.handleDefineEvents)
	r.Delete("/events", s.handleRemoveEvents)

	// Dispatch
	r.Post("/emit", s.handleEmit)

	// Subscribers
	r.Get("/subscribers", s.handleListSubscribers)
	r.Post("/subscribers", s.handleCreateSubscriber)
	r.Get("/subscribers/{id}", s.handleGetSubscriber)
	r.Delete("/subscribers/{id}", s.handleDeleteSubscriber)
	r.Get("/subscribers/{id}/deliveries", s.handleDeliveries)

	r.Get("/settings/once-return-value", s.handleGetOnceReturnValue)
	r.Put("/settings/once-return-value", s.handleSetOnceReturnValue)

	r.Get("/journal", s.handleJournal)
	r.Get("/schedules", s.handleListSchedules)
	r.Delete("/schedules/{name}", s.handleUnschedule)
	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// httpErr maps service errors onto status codes.
func httpErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalid), errors.Is(err, emitter.ErrInvalidListener):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
