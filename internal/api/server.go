// Package api serves the integration service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/integra/internal/metrics"
	"github.com/rendis/integra/internal/service"
)

// maxBodyBytes bounds request documents.
const maxBodyBytes = 1 << 20

// Deps holds the dependencies for the API server.
type Deps struct {
	Service *service.Service
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server exposes solve, samples, presets and run history as JSON endpoints.
type Server struct {
	deps Deps
}

// NewServer creates a new Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/solve", s.handleSolve)
	mux.HandleFunc("POST /api/samples", s.handleSamples)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/presets/{name}", s.handlePreset)
	mux.HandleFunc("POST /api/presets/{name}/solve", s.handleSolvePreset)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	return s.deps.Metrics.InstrumentHandler(mux)
}
