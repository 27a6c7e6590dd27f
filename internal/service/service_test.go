package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/integra/internal/engine"
	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/metrics"
	"github.com/rendis/integra/internal/store"
	"github.com/rendis/integra/pkg/schema"
)

type fixture struct {
	svc     *Service
	metrics *metrics.Collector
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewCollector("test")

	eng := engine.New(engine.Deps{Workers: 2, Logger: logger, Recorder: m})
	t.Cleanup(eng.Shutdown)

	guard, err := expressions.NewRequestGuard(expressions.DefaultGuardPolicy)
	require.NoError(t, err)

	deps := Deps{Engine: eng, Guard: guard, Metrics: m, Logger: logger}
	if withStore {
		s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		require.NoError(t, s.Migrate(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		deps.Store = s
	}

	svc, err := New(deps)
	require.NoError(t, err)
	return &fixture{svc: svc, metrics: m}
}

func parabola() schema.IntegrationRequest {
	return schema.IntegrationRequest{
		Expression: "x^2",
		Dimension:  1,
		Box:        schema.Box{X: schema.Range{0, 1}},
		Steps:      100,
	}
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestSolve_RecordsRun(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	sol, err := f.svc.Solve(ctx, parabola(), logging.SourceHTTP)
	require.NoError(t, err)
	assert.NotEmpty(t, sol.RunID)
	assert.InDelta(t, 1.0/3, sol.Result.Value, 1e-9)
	assert.Len(t, sol.Samples, schema.DefaultResolution+1)
	assert.True(t, f.svc.HistoryEnabled())

	run, err := f.svc.Run(ctx, sol.RunID)
	require.NoError(t, err)
	assert.Equal(t, "x ** 2", run.Normalized)
	assert.Equal(t, logging.SourceHTTP, run.Source)
	assert.Equal(t, schema.DefaultResolution+1, run.SampleCount)

	runs, err := f.svc.Runs(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "test_store_runs_saved_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSolve_ValidationError(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Solve(context.Background(), schema.IntegrationRequest{
		Expression: "x",
		Dimension:  5,
	}, logging.SourceCLI)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestSolve_InvalidExpression(t *testing.T) {
	f := newFixture(t, false)
	req := parabola()
	req.Expression = "import os"

	_, err := f.svc.Solve(context.Background(), req, logging.SourceCLI)
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidExpression))
}

func TestSolve_GuardRejects(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Solve(context.Background(), schema.IntegrationRequest{
		Expression: "x*y*z",
		Dimension:  3,
		Box:        schema.Box{X: schema.Range{0, 1}, Y: schema.Range{0, 1}, Z: schema.Range{0, 1}},
		Steps:      5000,
	}, logging.SourceMCP)
	assert.True(t, schema.IsCode(err, schema.ErrCodeRequestRejected))
}

func TestSolve_Warnings(t *testing.T) {
	f := newFixture(t, false)
	req := parabola()
	req.Box.X = schema.Range{1, 0}

	sol, err := f.svc.Solve(context.Background(), req, logging.SourceCLI)
	require.NoError(t, err)
	assert.InDelta(t, -1.0/3, sol.Result.Value, 1e-9)
	require.Len(t, sol.Warnings, 1)
	assert.Equal(t, schema.WarnCodeInvertedRange, sol.Warnings[0].Code)
}

func TestSolve_Query(t *testing.T) {
	f := newFixture(t, false)
	req := parabola()
	req.Resolution = 4
	req.Query = `map(select(.value >= 0.25)) | length`

	sol, err := f.svc.Solve(context.Background(), req, logging.SourceCLI)
	require.NoError(t, err)
	// Points 0, .25, .5, .75, 1 have values 0, .0625, .25, .5625, 1.
	assert.Equal(t, []any{3}, sol.Filtered)

	req.Query = `map(`
	_, err = f.svc.Solve(context.Background(), req, logging.SourceCLI)
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidRequest))
}

func TestSolveJSON(t *testing.T) {
	f := newFixture(t, false)

	sol, err := f.svc.SolveJSON(context.Background(),
		[]byte(`{"expression": "xy", "dimension": 2, "box": {"x": [0, 1], "y": [0, 1]}, "steps": 10}`),
		logging.SourceHTTP)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, sol.Result.Value, 1e-12)

	_, err = f.svc.SolveJSON(context.Background(),
		[]byte(`{"expression": "xy", "dimension": 2, "box": {"x": [0, 1]}}`), logging.SourceHTTP)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestSolvePreset(t *testing.T) {
	f := newFixture(t, false)

	sol, err := f.svc.SolvePreset(context.Background(), "parabola", 100, 5, logging.SourceCLI)
	require.NoError(t, err)
	assert.InDelta(t, 8.0/3, sol.Result.Value, 1e-9)
	assert.Equal(t, 5, sol.Resolution)

	_, err = f.svc.SolvePreset(context.Background(), "torus", 0, 0, logging.SourceCLI)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestSamples(t *testing.T) {
	f := newFixture(t, false)

	set, err := f.svc.Samples(context.Background(), schema.IntegrationRequest{
		Expression: "x*y",
		Dimension:  2,
		Box:        schema.Box{X: schema.Range{-1, 1}, Y: schema.Range{-1, 1}},
		Resolution: 10,
		Query:      `map(select(.value > 0)) | length`,
	}, logging.SourceHTTP)
	require.NoError(t, err)
	assert.Equal(t, 121, set.Count)
	assert.Equal(t, "x * y", set.Normalized)
	require.Len(t, set.Filtered, 1)

	set, err = f.svc.SamplesJSON(context.Background(),
		[]byte(`{"expression": "1/x", "dimension": 1, "box": {"x": [-1, 1]}, "resolution": 2}`),
		logging.SourceHTTP)
	require.NoError(t, err)
	require.Len(t, set.Samples, 3)
	assert.Equal(t, 0.0, set.Samples[1].Value)
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, false)
	assert.False(t, f.svc.HistoryEnabled())

	_, err := f.svc.Runs(context.Background(), store.RunFilter{})
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))

	_, err = f.svc.Run(context.Background(), "anything")
	assert.True(t, schema.IsCode(err, schema.ErrCodeStore))
}

func TestSolve_ConfiguredResolution(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(engine.Deps{Workers: 1, Logger: logger})
	t.Cleanup(eng.Shutdown)

	svc, err := New(Deps{Engine: eng, Logger: logger, Resolution: 4})
	require.NoError(t, err)

	req := parabola()
	req.Steps = 0
	sol, err := svc.Solve(context.Background(), req, logging.SourceCLI)
	require.NoError(t, err)
	assert.Equal(t, 4, sol.Resolution)
	assert.Equal(t, 4*schema.StepsPerResolution, sol.Steps)
	assert.Len(t, sol.Samples, 5)
}
