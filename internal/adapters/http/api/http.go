// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/skeleton"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service.
type Dependencies interface {
	MatchDependencies
	SessionDependencies
	FrameDependencies
}

// MatchDependencies serves POST /match.
type MatchDependencies interface {
	Match(ctx context.Context, rec skeleton.Record) (service.MatchResult, error)
}

// SessionDependencies serves the session routes.
type SessionDependencies interface {
	CreateSession(ctx context.Context) (service.SessionInfo, error)
	Session(ctx context.Context, id string) (service.SessionInfo, error)
	ResetSession(ctx context.Context, id string) (service.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	History(ctx context.Context, id string, limit int) ([]model.MotionEvent, error)
}

// FrameDependencies serves frame ingestion.
type FrameDependencies interface {
	Feed(ctx context.Context, id, frameID string, rec skeleton.Record) (service.FeedResult, error)
	// Enqueue reports true when the frame was a duplicate.
	Enqueue(ctx context.Context, id, frameID string, rec skeleton.Record) (bool, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchHandler   *MatchHandler
	sessionHandler *SessionHandler
	eventsHandler  *EventsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchHandler:   NewMatchHandler(deps),
		sessionHandler: NewSessionHandler(deps),
		eventsHandler:  NewEventsHandler(deps, deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /match", MetricsMiddleware(s.matchHandler.HandleMatch, "match"))
	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionHandler.HandleCreate, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionHandler.HandleGet, "session"))
	mux.HandleFunc("DELETE /sessions/{id}", MetricsMiddleware(s.sessionHandler.HandleDelete, "session"))
	mux.HandleFunc("POST /sessions/{id}/reset", MetricsMiddleware(s.sessionHandler.HandleReset, "session_reset"))
	mux.HandleFunc("POST /sessions/{id}/frames", MetricsMiddleware(s.eventsHandler.HandlePostFrame, "frames"))
	mux.HandleFunc("GET /sessions/{id}/events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}
