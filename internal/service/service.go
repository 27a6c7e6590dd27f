// Package service runs integration requests through the full pipeline
// shared by every surface: validation, guard policy, engine, sample query,
// history and metrics.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rendis/integra/internal/engine"
	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/metrics"
	"github.com/rendis/integra/internal/presets"
	"github.com/rendis/integra/internal/store"
	"github.com/rendis/integra/internal/validation"
	"github.com/rendis/integra/pkg/schema"
)

// Deps holds the collaborators of a Service. Engine is required. A nil
// Validator or Query is replaced with the default; a nil Guard admits every
// request; a nil Store disables history; a nil Metrics discards metrics.
// Resolution, when positive, replaces schema.DefaultResolution for requests
// that leave it unset.
type Deps struct {
	Resolution int
	Engine     *engine.Engine
	Validator  validation.Validator
	Guard      *expressions.RequestGuard
	Query      *expressions.SampleQuery
	Store      store.Store
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	resolution int
	engine     *engine.Engine
	validator  validation.Validator
	guard      *expressions.RequestGuard
	query      *expressions.SampleQuery
	store      store.Store
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// SampleSet is the answer to a samples-only request.
type SampleSet struct {
	Expression string                   `json:"expression"`
	Normalized string                   `json:"normalized"`
	Backend    string                   `json:"backend"`
	Dimension  int                      `json:"dimension"`
	Resolution int                      `json:"resolution"`
	Count      int                      `json:"count"`
	Samples    []schema.SamplePoint     `json:"samples"`
	Filtered   []any                    `json:"filtered,omitempty"`
	Warnings   []schema.ValidationIssue `json:"warnings,omitempty"`
}

// New creates a Service.
func New(deps Deps) (*Service, error) {
	if deps.Engine == nil {
		return nil, schema.NewError(schema.ErrCodeInvalidRequest, "service requires an engine")
	}
	if deps.Validator == nil {
		v, err := validation.NewRequestValidator()
		if err != nil {
			return nil, err
		}
		deps.Validator = v
	}
	if deps.Query == nil {
		deps.Query = expressions.NewSampleQuery()
	}
	return &Service{
		resolution: deps.Resolution,
		engine:     deps.Engine,
		validator:  deps.Validator,
		guard:      deps.Guard,
		query:      deps.Query,
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     logging.Default(deps.Logger),
	}, nil
}

// HistoryEnabled reports whether runs are persisted.
func (s *Service) HistoryEnabled() bool { return s.store != nil }

// Solve validates req, integrates it, estimates the error, samples it and
// records the run. source names the surface that received the request.
func (s *Service) Solve(ctx context.Context, req schema.IntegrationRequest, source string) (*schema.Solution, error) {
	result := s.validator.Validate(&req)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return s.solve(ctx, req, result.Warnings, source)
}

// SolveJSON is Solve for a raw request document.
func (s *Service) SolveJSON(ctx context.Context, data []byte, source string) (*schema.Solution, error) {
	req, result := s.validator.Decode(data)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return s.solve(ctx, *req, result.Warnings, source)
}

// SolvePreset solves a catalogue preset. steps and resolution override the
// preset when positive.
func (s *Service) SolvePreset(ctx context.Context, name string, steps, resolution int, source string) (*schema.Solution, error) {
	p, err := presets.Get(name)
	if err != nil {
		return nil, err
	}
	req := p.Request
	if steps > 0 {
		req.Steps = steps
	}
	if resolution > 0 {
		req.Resolution = resolution
	}
	return s.Solve(ctx, req, source)
}

func (s *Service) solve(ctx context.Context, req schema.IntegrationRequest, warnings []schema.ValidationIssue, source string) (*schema.Solution, error) {
	req = s.withDefaults(req)
	if err := s.guard.Check(ctx, req.Dimension, req.Steps, req.Resolution); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithSource(ctx, source)
	ctx = logging.WithExpression(ctx, req.Expression)

	sol, err := s.engine.Run(ctx, req, true)
	if err != nil {
		s.logger.DebugContext(ctx, "solve rejected", slog.Any("error", err))
		return nil, err
	}
	sol.RunID = runID
	sol.Warnings = warnings

	if req.Query != "" {
		filtered, err := s.query.Apply(ctx, req.Query, sol.Samples)
		if err != nil {
			return nil, err
		}
		sol.Filtered = filtered
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, store.RunFromSolution(sol, source)); err != nil {
			// The answer is still good; history is best effort.
			s.logger.WarnContext(ctx, "failed to record run", slog.String("error", err.Error()))
		} else {
			s.metrics.ObserveRunSaved(source)
		}
	}

	s.logger.InfoContext(ctx, "solved",
		slog.Int("dimension", sol.Dimension),
		slog.Int("steps", sol.Steps),
		slog.Float64("value", sol.Result.Value),
		slog.Duration("duration", sol.Duration),
	)
	return sol, nil
}

// Samples validates req and returns its sample set without integrating.
func (s *Service) Samples(ctx context.Context, req schema.IntegrationRequest, source string) (*SampleSet, error) {
	result := s.validator.Validate(&req)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return s.samples(ctx, req, result.Warnings, source)
}

// SamplesJSON is Samples for a raw request document.
func (s *Service) SamplesJSON(ctx context.Context, data []byte, source string) (*SampleSet, error) {
	req, result := s.validator.Decode(data)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return s.samples(ctx, *req, result.Warnings, source)
}

func (s *Service) samples(ctx context.Context, req schema.IntegrationRequest, warnings []schema.ValidationIssue, source string) (*SampleSet, error) {
	req = s.withDefaults(req)
	if err := s.guard.Check(ctx, req.Dimension, req.Steps, req.Resolution); err != nil {
		return nil, err
	}
	ctx = logging.WithSource(ctx, source)
	ctx = logging.WithExpression(ctx, req.Expression)

	points, expr, err := s.engine.Sample(ctx, req)
	if err != nil {
		return nil, err
	}
	set := &SampleSet{
		Expression: expr.Text(),
		Normalized: expr.Normalized(),
		Backend:    expr.Backend(),
		Dimension:  req.Dimension,
		Resolution: req.Resolution,
		Count:      len(points),
		Samples:    points,
		Warnings:   warnings,
	}
	if req.Query != "" {
		filtered, err := s.query.Apply(ctx, req.Query, points)
		if err != nil {
			return nil, err
		}
		set.Filtered = filtered
	}

	s.logger.DebugContext(ctx, "sampled", slog.Int("count", len(points)))
	return set, nil
}

// Run returns a recorded run.
func (s *Service) Run(ctx context.Context, id string) (*store.Run, error) {
	if s.store == nil {
		return nil, errHistoryDisabled()
	}
	return s.store.GetRun(ctx, id)
}

// Runs lists recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	if s.store == nil {
		return nil, errHistoryDisabled()
	}
	return s.store.ListRuns(ctx, filter)
}

func (s *Service) withDefaults(req schema.IntegrationRequest) schema.IntegrationRequest {
	if req.Resolution <= 0 && s.resolution > 0 {
		req.Resolution = s.resolution
	}
	return req.WithDefaults()
}

func errHistoryDisabled() error {
	return schema.NewError(schema.ErrCodeStore, "run history is disabled")
}
