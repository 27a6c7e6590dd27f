package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rendis/integra/internal/engine"
	"github.com/rendis/integra/internal/expressions"
	"github.com/rendis/integra/internal/scheduler"
	"github.com/rendis/integra/pkg/schema"
)

// Config holds all integra configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr       string `json:"listen_addr"       env:"INTEGRA_LISTEN_ADDR"`
	DBPath           string `json:"db_path"           env:"INTEGRA_DB_PATH"`
	LogLevel         string `json:"log_level"         env:"INTEGRA_LOG_LEVEL"`
	Backend          string `json:"backend"           env:"INTEGRA_BACKEND"`
	Workers          int    `json:"workers"           env:"INTEGRA_WORKERS"`
	Resolution       int    `json:"resolution"        env:"INTEGRA_RESOLUTION"`
	GuardPolicy      string `json:"guard_policy"      env:"INTEGRA_GUARD_POLICY"`
	History          bool   `json:"history"           env:"INTEGRA_HISTORY"`
	HistoryRetention string `json:"history_retention" env:"INTEGRA_HISTORY_RETENTION"`
	PruneSchedule    string `json:"prune_schedule"    env:"INTEGRA_PRUNE_SCHEDULE"`
	HTTP             bool   `json:"http"              env:"INTEGRA_HTTP"`
	Metrics          bool   `json:"metrics"           env:"INTEGRA_METRICS"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:       ":4200",
		DBPath:           filepath.Join(integraDir(), "integra.db"),
		LogLevel:         "info",
		Backend:          expressions.BackendNative,
		Workers:          engine.DefaultWorkers,
		Resolution:       schema.DefaultResolution,
		GuardPolicy:      expressions.DefaultGuardPolicy,
		History:          true,
		HistoryRetention: scheduler.DefaultRetention.String(),
		PruneSchedule:    scheduler.DefaultSchedule,
		Metrics:          true,
	}
}

func integraDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".integra"
	}
	return filepath.Join(home, ".integra")
}

func settingsPath() string {
	return filepath.Join(integraDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(integraDir(), "integra.pid")
}

// loadConfig layers settings.json and the environment over the defaults.
func loadConfig() (Config, error) {
	return loadConfigFrom(settingsPath())
}

func loadConfigFrom(path string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	// Layer 3: env vars override.
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := expressions.NewCompiler(c.Backend); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Resolution < 1 {
		return fmt.Errorf("resolution must be at least 1, got %d", c.Resolution)
	}
	if _, err := c.retention(); err != nil {
		return err
	}
	return nil
}

// retention parses HistoryRetention. Zero disables pruning.
func (c Config) retention() (time.Duration, error) {
	if c.HistoryRetention == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HistoryRetention)
	if err != nil {
		return 0, fmt.Errorf("invalid history_retention %q: %w", c.HistoryRetention, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("history_retention must not be negative, got %s", d)
	}
	return d, nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	MetricsChanged  bool
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.Metrics != new.Metrics {
		d.MetricsChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.Backend != new.Backend {
		d.RestartNeeded = append(d.RestartNeeded, "backend")
	}
	if old.Workers != new.Workers {
		d.RestartNeeded = append(d.RestartNeeded, "workers")
	}
	if old.Resolution != new.Resolution {
		d.RestartNeeded = append(d.RestartNeeded, "resolution")
	}
	if old.GuardPolicy != new.GuardPolicy {
		d.RestartNeeded = append(d.RestartNeeded, "guard_policy")
	}
	if old.History != new.History {
		d.RestartNeeded = append(d.RestartNeeded, "history")
	}
	if old.HistoryRetention != new.HistoryRetention {
		d.RestartNeeded = append(d.RestartNeeded, "history_retention")
	}
	if old.PruneSchedule != new.PruneSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "prune_schedule")
	}
	if old.HTTP != new.HTTP {
		d.RestartNeeded = append(d.RestartNeeded, "http")
	}
	return d
}
