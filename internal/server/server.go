// Package server exposes the digest pipeline over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"coachly/internal/config"
	"coachly/internal/digest"
	"coachly/internal/insights"
	"coachly/internal/logger"
	"coachly/internal/query"
	"coachly/internal/store"
)

// Pinger checks backing-store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	generator  *digest.Generator
	search     *insights.Search
	queries    *query.Builder
	profiles   store.ProfileRepository
	digests    store.DigestRepository
	pinger     Pinger
	config     config.Config
	log        *slog.Logger
}

// Deps bundles everything the server serves.
type Deps struct {
	Generator *digest.Generator
	Search    *insights.Search
	Queries   *query.Builder
	Profiles  store.ProfileRepository
	Digests   store.DigestRepository
	Pinger    Pinger
}

// New creates the HTTP server with middleware and routes configured.
func New(deps Deps, cfg config.Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		generator: deps.Generator,
		search:    deps.Search,
		queries:   deps.Queries,
		profiles:  deps.Profiles,
		digests:   deps.Digests,
		pinger:    deps.Pinger,
		config:    cfg,
		log:       logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	// Generation can take several model round trips.
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/digests", func(r chi.Router) {
			r.Post("/generate", s.handleGenerateDigest)
			r.Get("/", s.handleListDigests)
			r.Get("/id/{id}", s.handleGetDigestByID)
			r.Get("/{date}", s.handleGetDigest)
			r.Delete("/{date}", s.handleDeleteDigest)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Get("/search", s.handleSearchInsights)
		})

		r.Route("/queries", func(r chi.Router) {
			r.Get("/suggestions", s.handleQuerySuggestions)
		})

		r.Post("/feedback", s.handleRecordFeedback)
	})
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
