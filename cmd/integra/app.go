package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rendis/integra/internal/api"
	"github.com/rendis/integra/internal/engine"
	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/metrics"
	"github.com/rendis/integra/internal/service"
	"github.com/rendis/integra/internal/store"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg     Config
	logger  *slog.Logger
	level   *slog.LevelVar
	metrics *metrics.Collector
	engine  *engine.Engine
	store   *store.LibSQLStore // nil when history is off
	svc     *service.Service
}

func newLogger(w io.Writer, level string) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(logging.ParseLevel(level))
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return slog.New(logging.NewCorrelationHandler(h)), lv
}

// buildApp wires the engine, service and, when withHistory is set and the
// config enables it, the run store.
func buildApp(ctx context.Context, cfg Config, withHistory bool) (*app, error) {
	logger, level := newLogger(os.Stderr, cfg.LogLevel)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		level:   level,
		metrics: metrics.NewCollector(metrics.DefaultNamespace),
	}

	compiler, err := expressions.NewCompiler(cfg.Backend)
	if err != nil {
		return nil, err
	}
	guard, err := expressions.NewRequestGuard(cfg.GuardPolicy)
	if err != nil {
		return nil, fmt.Errorf("guard policy: %w", err)
	}

	a.engine = engine.New(engine.Deps{
		Compiler: compiler,
		Workers:  cfg.Workers,
		Logger:   logger,
		Recorder: a.metrics,
	})

	deps := service.Deps{
		Resolution: cfg.Resolution,
		Engine:     a.engine,
		Guard:      guard,
		Metrics:    a.metrics,
		Logger:     logger,
	}
	if withHistory && cfg.History {
		s, err := openStore(ctx, cfg.DBPath)
		if err != nil {
			a.engine.Shutdown()
			return nil, err
		}
		a.store = s
		deps.Store = s
	}

	a.svc, err = service.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStore(ctx context.Context, dbPath string) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// apiHandler builds the HTTP handler. The /metrics route is mounted only
// when withMetrics is set; collection continues either way.
func (a *app) apiHandler(withMetrics bool) http.Handler {
	deps := api.Deps{Service: a.svc, Logger: a.logger}
	if withMetrics {
		deps.Metrics = a.metrics
	}
	return api.NewServer(deps).Handler()
}

// reload re-reads the configuration and applies what can change in place:
// the log level and the metrics endpoint. It returns the config now in
// effect.
func (a *app) reload(current Config, swapper *handlerSwapper) Config {
	next, err := loadConfig()
	if err != nil {
		a.logger.Warn("config reload failed", "error", err)
		return current
	}

	d := diffConfigs(current, next)
	if d.LogLevelChanged {
		a.level.Set(logging.ParseLevel(next.LogLevel))
		current.LogLevel = next.LogLevel
		a.logger.Info("log level changed", "level", next.LogLevel)
	}
	if d.MetricsChanged && swapper != nil {
		swapper.Swap(a.apiHandler(next.Metrics))
		current.Metrics = next.Metrics
		a.logger.Info("metrics endpoint toggled", "enabled", next.Metrics)
	}
	if len(d.RestartNeeded) > 0 {
		a.logger.Warn("config changes need a restart", "fields", d.RestartNeeded)
	}
	return current
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Shutdown()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}
