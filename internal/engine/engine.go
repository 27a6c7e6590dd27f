package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/pkg/schema"
)

// DefaultWorkers is the default number of quadrature chunks run in parallel.
const DefaultWorkers = 4

// Recorder receives engine measurements. Satisfied by *metrics.Collector.
type Recorder interface {
	ObserveCompile(backend string, err error)
	ObserveIntegration(dimension int, elapsed time.Duration, err error)
	ObserveSamples(dimension int, count int)
}

// Deps holds the collaborators of an Engine. Zero values are replaced with
// defaults: the native compiler, DefaultWorkers, a stderr logger and no
// recorder.
type Deps struct {
	Compiler expressions.Compiler
	Workers  int
	Logger   *slog.Logger
	Recorder Recorder
}

// Engine holds one current expression and integrates it. Compile replaces
// the current expression only on success. Run works on a private expression
// and may be called concurrently.
type Engine struct {
	compiler  expressions.Compiler
	compilers map[string]expressions.Compiler
	pool      *WorkerPool
	quad      *Quadrature
	logger    *slog.Logger
	recorder  Recorder

	mu      sync.RWMutex // guards current and compilers
	current *expressions.Expression
}

// New creates an Engine.
func New(deps Deps) *Engine {
	if deps.Compiler == nil {
		deps.Compiler = expressions.NewNativeCompiler()
	}
	if deps.Workers <= 0 {
		deps.Workers = DefaultWorkers
	}
	pool := NewWorkerPool(deps.Workers)
	return &Engine{
		compiler:  deps.Compiler,
		compilers: map[string]expressions.Compiler{deps.Compiler.Name(): deps.Compiler},
		pool:      pool,
		quad:      NewQuadrature(pool),
		logger:    logging.Default(deps.Logger),
		recorder:  deps.Recorder,
	}
}

// Backend returns the name of the engine's default compiler.
func (e *Engine) Backend() string { return e.compiler.Name() }

// Compile compiles text and makes it the current expression. On failure the
// previous expression stays current.
func (e *Engine) Compile(text string) (*expressions.Expression, error) {
	expr, err := e.compile(e.compiler, text)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.current = expr
	e.mu.Unlock()
	return expr, nil
}

// Current returns the current expression, or nil before the first
// successful Compile.
func (e *Engine) Current() *expressions.Expression {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

func (e *Engine) integrand() (Integrand, error) {
	expr := e.Current()
	if expr == nil {
		return nil, schema.NewError(schema.ErrCodeNoExpression, "no expression compiled")
	}
	return expr.Func(), nil
}

// Integrate integrates the current expression.
func (e *Engine) Integrate(ctx context.Context, dimension int, box schema.Box, steps int) (float64, error) {
	f, err := e.integrand()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	v, err := e.quad.Integrate(ctx, f, dimension, box, steps)
	e.observeIntegration(dimension, time.Since(start), err)
	return v, err
}

// EstimateError estimates the discretization error of the current expression.
func (e *Engine) EstimateError(ctx context.Context, dimension int, box schema.Box, steps int) (float64, error) {
	f, err := e.integrand()
	if err != nil {
		return 0, err
	}
	return e.quad.EstimateError(ctx, f, dimension, box, steps)
}

// Solve integrates the current expression and estimates its error.
func (e *Engine) Solve(ctx context.Context, dimension int, box schema.Box, steps int) (schema.IntegrationResult, error) {
	f, err := e.integrand()
	if err != nil {
		return schema.IntegrationResult{}, err
	}
	start := time.Now()
	res, err := e.quad.Solve(ctx, f, dimension, box, steps)
	e.observeIntegration(dimension, time.Since(start), err)
	return res, err
}

// GenerateSamples samples the current expression for rendering.
func (e *Engine) GenerateSamples(ctx context.Context, dimension int, box schema.Box, resolution int) ([]schema.SamplePoint, error) {
	f, err := e.integrand()
	if err != nil {
		return nil, err
	}
	points, err := GenerateSamples(ctx, f, dimension, box, resolution)
	if err == nil && e.recorder != nil {
		e.recorder.ObserveSamples(dimension, len(points))
	}
	return points, err
}

// Run compiles req.Expression privately and returns the integral, its
// error estimate and the sample set. The current expression is untouched.
// withSamples false skips sampling.
func (e *Engine) Run(ctx context.Context, req schema.IntegrationRequest, withSamples bool) (*schema.Solution, error) {
	req = req.WithDefaults()

	compiler, err := e.compilerFor(req.Backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	expr, err := e.compile(compiler, req.Expression)
	if err != nil {
		return nil, err
	}
	f := Integrand(expr.Func())

	res, err := e.quad.Solve(ctx, f, req.Dimension, req.Box, req.Steps)
	e.observeIntegration(req.Dimension, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	sol := &schema.Solution{
		Expression: expr.Text(),
		Normalized: expr.Normalized(),
		Backend:    expr.Backend(),
		Dimension:  req.Dimension,
		Box:        req.Box,
		Steps:      req.Steps,
		Resolution: req.Resolution,
		Result:     res,
	}
	if withSamples {
		points, err := GenerateSamples(ctx, f, req.Dimension, req.Box, req.Resolution)
		if err != nil {
			return nil, err
		}
		if e.recorder != nil {
			e.recorder.ObserveSamples(req.Dimension, len(points))
		}
		sol.Samples = points
	}
	sol.Duration = time.Since(start)

	logging.LogWith(ctx, e.logger).Debug("run complete",
		slog.Int("dimension", req.Dimension),
		slog.Int("steps", req.Steps),
		slog.Float64("value", res.Value),
		slog.Duration("duration", sol.Duration),
	)
	return sol, nil
}

// Sample compiles req.Expression privately and returns only its sample set.
func (e *Engine) Sample(ctx context.Context, req schema.IntegrationRequest) ([]schema.SamplePoint, *expressions.Expression, error) {
	req = req.WithDefaults()
	compiler, err := e.compilerFor(req.Backend)
	if err != nil {
		return nil, nil, err
	}
	expr, err := e.compile(compiler, req.Expression)
	if err != nil {
		return nil, nil, err
	}
	points, err := GenerateSamples(ctx, expr.Func(), req.Dimension, req.Box, req.Resolution)
	if err != nil {
		return nil, nil, err
	}
	if e.recorder != nil {
		e.recorder.ObserveSamples(req.Dimension, len(points))
	}
	return points, expr, nil
}

// PoolMetrics returns a snapshot of the quadrature worker pool.
func (e *Engine) PoolMetrics() PoolMetrics { return e.pool.Metrics() }

// Shutdown stops the worker pool. The engine must not be used afterwards.
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
}

// compilerFor returns the compiler for backend, creating and keeping it on
// first use so its program cache survives across requests.
func (e *Engine) compilerFor(backend string) (expressions.Compiler, error) {
	if backend == "" {
		return e.compiler, nil
	}
	e.mu.RLock()
	c, ok := e.compilers[backend]
	e.mu.RUnlock()
	if ok {
		return c, nil
	}
	c, err := expressions.NewCompiler(backend)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if existing, ok := e.compilers[backend]; ok {
		c = existing
	} else {
		e.compilers[backend] = c
	}
	e.mu.Unlock()
	return c, nil
}

func (e *Engine) compile(c expressions.Compiler, text string) (*expressions.Expression, error) {
	expr, err := c.Compile(text)
	if e.recorder != nil {
		e.recorder.ObserveCompile(c.Name(), err)
	}
	if err != nil {
		e.logger.Debug("compile failed", slog.String("backend", c.Name()), slog.Any("error", err))
		return nil, err
	}
	return expr, nil
}

func (e *Engine) observeIntegration(dimension int, elapsed time.Duration, err error) {
	if e.recorder != nil {
		e.recorder.ObserveIntegration(dimension, elapsed, err)
	}
}
