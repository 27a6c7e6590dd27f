package api

import (
	"io"
	"net/http"
	"time"

	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/presets"
	"github.com/rendis/integra/internal/store"
	"github.com/rendis/integra/pkg/schema"
)

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	ctx := logging.WithSource(r.Context(), logging.SourceHTTP)
	sol, err := s.deps.Service.SolveJSON(ctx, body, logging.SourceHTTP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	ctx := logging.WithSource(r.Context(), logging.SourceHTTP)
	set, err := s.deps.Service.SamplesJSON(ctx, body, logging.SourceHTTP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": presets.All()})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	p, err := presets.Get(r.PathValue("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSolvePreset solves a preset. steps and resolution may be overridden
// with query parameters.
func (s *Server) handleSolvePreset(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithSource(r.Context(), logging.SourceHTTP)
	sol, err := s.deps.Service.SolvePreset(ctx, r.PathValue("name"),
		queryInt(r, "steps", 0), queryInt(r, "resolution", 0), logging.SourceHTTP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Dimension:  queryInt(r, "dimension", 0),
		Source:     q.Get("source"),
		Backend:    q.Get("backend"),
		Expression: q.Get("expression"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				schema.NewErrorf(schema.ErrCodeInvalidRequest, "since must be RFC 3339: %v", err))
			return
		}
		filter.Since = &t
	}

	runs, err := s.deps.Service.Runs(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Service.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.deps.Service.HistoryEnabled(),
	})
}

// readBody reads at most maxBodyBytes of the request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge,
			schema.NewErrorf(schema.ErrCodeInvalidRequest, "read body: %v", err))
		return nil, false
	}
	return body, true
}

// fail writes err with its mapped status. Server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err)
}
