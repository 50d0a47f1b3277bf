package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"codemind/internal/config"
	"codemind/internal/indexer"
	"codemind/internal/jobs"
	"codemind/internal/search"
	"codemind/internal/vectorstore"
)

// Server wires the retrieval and job-tracking components behind one
// HTTP surface.
type Server struct {
	cfg        *config.Config
	backend    vectorstore.Backend
	tracker    *jobs.Tracker
	svc        *search.Service
	runner     *indexer.Runner
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies injected. Backends and stores
// are selected once, at startup, by configuration.
func New(cfg *config.Config, backend vectorstore.Backend, tracker *jobs.Tracker, svc *search.Service, runner *indexer.Runner) *Server {
	s := &Server{
		cfg:     cfg,
		backend: backend,
		tracker: tracker,
		svc:     svc,
		runner:  runner,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAllOrigins {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	search.RegisterRoutes(r, s.svc)
	indexer.RegisterRoutes(r, s.tracker, s.runner)
	jobs.RegisterRoutes(r, s.tracker, s.backend, s.cfg.EmbeddingDimensions)
	r.Post("/api/reset", s.handleReset())

	return r
}

// Router returns the chi router, used by tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("codemind server listening on %s (vector=%s, metadata=%s)",
		addr, s.cfg.VectorBackend, s.cfg.MetadataStore)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
