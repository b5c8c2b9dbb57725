// Package httpapi exposes the operational HTTP surface: health, Prometheus
// metrics, and a FAILED-event inspection endpoint for operators. There is
// no user-facing CRUD surface here (user-context events are fed through
// cmd/seed instead); this mirrors the teacher's DebugHandler shape (plain
// json.NewEncoder responses, no framework-level response envelope) scoped
// down to what this system actually needs operators to see.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

// Server holds the collaborators the operational surface needs.
type Server struct {
	events ports.EventStore
}

func NewServer(events ports.EventStore) *Server {
	return &Server{events: events}
}

// Router builds the chi mux, wiring the teacher's standard middleware
// stack (request ID, structured logger, panic recovery).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/events/failed", s.listFailedEvents)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// listFailedEvents lets an operator see what needs manual attention: every
// FAILED event for a given user, ordered by target_utc ascending.
func (s *Server) listFailedEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id query parameter is required and must be a UUID", http.StatusBadRequest)
		return
	}
	all, err := s.events.FindByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	failed := make([]domain.Event, 0)
	for _, ev := range all {
		if ev.Status == domain.StatusFailed {
			failed = append(failed, ev)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(failed)
}
