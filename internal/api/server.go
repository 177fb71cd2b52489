// Package api serves Markdown to .docx conversion over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wangqiqi/md2docx/internal/config"
	"github.com/wangqiqi/md2docx/internal/pipeline"
)

// Server is the HTTP API server for md2docx.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. metricsHandler may be
// nil, in which case /metrics is not served.
func NewServer(orch *pipeline.Orchestrator, metricsHandler http.Handler, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		metrics:      metricsHandler,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/convert", s.handleConvert)
		r.Post("/api/convert/batch", s.handleBatchConvert)
		r.Post("/api/convert/sync", s.handleConvertSync)
		r.Get("/api/convert/{jobID}/status", s.handleConvertStatus)
		r.Get("/api/convert/{jobID}/result", s.handleConvertResult)
		r.Get("/api/stats/conversions", s.handleConversionStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
