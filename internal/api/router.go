// Package api exposes the planner over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/icare0/Do-it-repo-sub000/internal/planner"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/recommend"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/routing"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/internal/tasksource"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// Planner is the orchestrator surface served over HTTP
type Planner interface {
	AnalyzeAndOptimize(ctx context.Context, tasks []types.Task, opts planner.Options) *planner.Result
	OptimizeRoutes(ctx context.Context, tasks []types.Task) []types.Task
	FindBestTimeSlot(ctx context.Context, task types.Task, tasks []types.Task) *types.TimeSlot
	Route(ctx context.Context, waypoints []geo.Point) routing.RouteInfo
	RefreshContext(ctx context.Context, tasks []types.Task) types.OptimizationContext
	InvalidateCache()
	Dismiss(ctx context.Context, id string) error
	MarkActed(ctx context.Context, id string) error
	MarkViewed(id string)
	Patterns() []types.UserPattern
	Templates() []recommend.Template
}

// Server holds the handler dependencies
type Server struct {
	planner Planner
	tasks   tasksource.Source
	logger  *slog.Logger
}

// NewServer creates the API; tasks supplies records for requests that do
// not carry their own
func NewServer(p Planner, tasks tasksource.Source, logger *slog.Logger) *Server {
	return &Server{
		planner: p,
		tasks:   tasks,
		logger:  logger.With("component", "api"),
	}
}

// Router registers every route
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	v1.HandleFunc("/routes/optimize", s.optimizeRoutes).Methods(http.MethodPost)
	v1.HandleFunc("/routes", s.route).Methods(http.MethodPost)
	v1.HandleFunc("/slots/best", s.bestSlot).Methods(http.MethodPost)
	v1.HandleFunc("/patterns", s.patterns).Methods(http.MethodGet)
	v1.HandleFunc("/templates", s.templates).Methods(http.MethodGet)
	v1.HandleFunc("/context/refresh", s.refreshContext).Methods(http.MethodPost)
	v1.HandleFunc("/context", s.invalidateContext).Methods(http.MethodDelete)
	v1.HandleFunc("/recommendations/{id}/{action:dismiss|acted|viewed}", s.recommendationFeedback).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with CORS, panic recovery and, when accessLog
// is non-nil, Apache-style access logging
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	h = c.Handler(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}
