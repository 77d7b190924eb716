package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/internal/scheduler"
	"github.com/me/mise/pkg/model"
)

// Server is the mise REST API server. It keeps no task state between
// requests: every schedule request carries its complete task list.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	scheduler *scheduler.Pipeline

	solveSlots *semaphore.Weighted
	solves     singleflight.Group
	active     atomic.Int64
	completed  atomic.Int64
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, logger *slog.Logger) *Server {
	logger = logging.OrDiscard(logger)
	slots := cfg.MaxConcurrentSolves
	if slots <= 0 {
		slots = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultServerConfig().MaxBodyBytes
	}
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger.With("component", "server"),
		config:     cfg,
		startTime:  time.Now(),
		scheduler:  scheduler.New(cfg.Solver, logger),
		solveSlots: semaphore.NewWeighted(slots),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound,
			model.NewNotFoundError("route", r.URL.Path))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", s.handleCreateSchedule)
			r.Post("/validate", s.handleValidateSchedule)
		})
	})
}
