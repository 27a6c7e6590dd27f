package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "native", cfg.Backend)
	assert.Equal(t, 10, cfg.Resolution)
	assert.True(t, cfg.History)
	assert.False(t, cfg.HTTP)
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":"expr","workers":8,"listen_addr":":9000"}`), 0o644))

	t.Setenv("INTEGRA_WORKERS", "2")
	t.Setenv("INTEGRA_HTTP", "true")
	t.Setenv("INTEGRA_HISTORY_RETENTION", "48h")

	cfg, err := loadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "expr", cfg.Backend)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.HTTP)

	retention, err := cfg.retention()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, retention)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"workers":`), 0o644))
	_, err := loadConfigFrom(bad)
	assert.Error(t, err)

	tests := []struct {
		name, key, value string
	}{
		{"backend", "INTEGRA_BACKEND", "python"},
		{"workers", "INTEGRA_WORKERS", "0"},
		{"resolution", "INTEGRA_RESOLUTION", "-1"},
		{"retention", "INTEGRA_HISTORY_RETENTION", "forever"},
		{"negative retention", "INTEGRA_HISTORY_RETENTION", "-1h"},
		{"env type", "INTEGRA_WORKERS", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := loadConfigFrom(filepath.Join(dir, "missing.json"))
			assert.Error(t, err)
		})
	}
}

func TestRetention_Empty(t *testing.T) {
	d, err := Config{}.retention()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestDiffConfigs(t *testing.T) {
	old := defaultConfig()

	d := diffConfigs(old, old)
	assert.False(t, d.MetricsChanged)
	assert.False(t, d.LogLevelChanged)
	assert.Empty(t, d.RestartNeeded)

	next := old
	next.Metrics = !old.Metrics
	next.LogLevel = "debug"
	next.Workers = 16
	next.ListenAddr = ":1"
	next.PruneSchedule = "@daily"

	d = diffConfigs(old, next)
	assert.True(t, d.MetricsChanged)
	assert.True(t, d.LogLevelChanged)
	assert.ElementsMatch(t, []string{"listen_addr", "workers", "prune_schedule"}, d.RestartNeeded)
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	cfg := defaultConfig()
	cfg.Backend = "expr"

	var out bytes.Buffer
	require.NoError(t, writeConfig(path, cfg, &out))
	assert.Contains(t, out.String(), path)

	loaded, err := loadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
