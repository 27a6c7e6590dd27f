package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/integra/internal/logging"
)

// Defaults for run history retention.
const (
	DefaultSchedule  = "@hourly"
	DefaultRetention = 30 * 24 * time.Hour
	DefaultInterval  = 60 * time.Second
)

// Pruner deletes runs created before a cutoff. Satisfied by store.Store.
type Pruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// PruneRecorder receives prune counts. Satisfied by *metrics.Collector.
type PruneRecorder interface {
	ObservePruned(count int64)
}

// Config controls the retention scheduler.
type Config struct {
	Schedule  string        // cron expression; descriptors like @hourly are accepted
	Retention time.Duration // runs older than this are pruned
	Interval  time.Duration // how often the loop checks whether a prune is due
}

// Scheduler prunes run history on a cron schedule.
type Scheduler struct {
	pruner    Pruner
	recorder  PruneRecorder
	parser    cron.Parser
	schedule  cron.Schedule
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	nextMu  sync.Mutex
	nextRun time.Time
}

// NewScheduler creates a Scheduler. recorder and logger may be nil.
func NewScheduler(p Pruner, cfg Config, recorder PruneRecorder, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	s := &Scheduler{
		pruner:    p,
		recorder:  recorder,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		retention: cfg.Retention,
		interval:  cfg.Interval,
		logger:    logging.Default(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
	schedule, err := s.parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", cfg.Schedule, err)
	}
	s.schedule = schedule
	return s, nil
}

// Start launches the background loop. The first prune happens at the first
// scheduled time after start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setNextRun(s.schedule.Next(s.now()))
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("retention scheduler started",
		slog.Duration("retention", s.retention),
		slog.Time("next_run", s.NextRun()),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.now())
		}
	}
}

// tick prunes when the scheduled time has passed and schedules the next one.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if now.Before(s.NextRun()) {
		return
	}
	if _, err := s.PruneNow(ctx); err != nil {
		s.logger.Error("prune failed", slog.String("error", err.Error()))
	}
	s.setNextRun(s.schedule.Next(now))
}

// PruneNow deletes runs older than the retention window immediately.
func (s *Scheduler) PruneNow(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.ObservePruned(n)
	}
	s.logger.Info("pruned run history", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// NextRun returns the next scheduled prune time.
func (s *Scheduler) NextRun() time.Time {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.nextMu.Lock()
	s.nextRun = t
	s.nextMu.Unlock()
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("retention scheduler stopped")
	return nil
}
