package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.Equal(t, 2, cfg.Workflow.MaxStepRetries)
	assert.Equal(t, 5, cfg.Process.MaxRestarts)
	assert.Equal(t, time.Minute, cfg.Process.DegradedAfter)
	assert.Equal(t, 5*time.Minute, cfg.Process.UnresponsiveAfter)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: console
workflow:
  max_step_retries: 5
process:
  max_restarts: 10
database:
  enabled: true
  driver: sqlite
  dsn: ":memory:"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Workflow.MaxStepRetries)
	assert.Equal(t, 10, cfg.Process.MaxRestarts)
	assert.True(t, cfg.Database.Enabled)
	// Untouched fields keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Workflow.DefaultStepTimeout)
}

func TestLoader_YAMLDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
workflow:
  default_step_timeout: 45s
process:
  health_sweep_interval: 10s
  degraded_after: 2m
  unresponsive_after: 10m
cache:
  default_ttl: 1h
database:
  conn_max_lifetime: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.Equal(t, 10*time.Second, cfg.Process.HealthSweepInterval)
	assert.Equal(t, 2*time.Minute, cfg.Process.DegradedAfter)
	assert.Equal(t, 10*time.Minute, cfg.Process.UnresponsiveAfter)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	// Untouched durations keep defaults.
	assert.Equal(t, time.Second, cfg.Process.RestartSettleDelay)
}

func TestLoader_RejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("workflow:\n  default_step_timeout: soon\n"), 0o600))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.default_step_timeout")
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	t.Setenv("EDUFLOW_LOG_LEVEL", "warn")
	t.Setenv("EDUFLOW_WORKFLOW_DEFAULT_STEP_TIMEOUT", "45s")
	t.Setenv("EDUFLOW_PROCESS_MAX_RESTARTS", "3")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 45*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.Equal(t, 3, cfg.Process.MaxRestarts)
}

func TestLoader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantSub: "log.level",
		},
		{
			name:    "non-positive step timeout",
			mutate:  func(c *Config) { c.Workflow.DefaultStepTimeout = 0 },
			wantSub: "workflow.default_step_timeout",
		},
		{
			name: "thresholds inverted",
			mutate: func(c *Config) {
				c.Process.DegradedAfter = 5 * time.Minute
				c.Process.UnresponsiveAfter = time.Minute
			},
			wantSub: "process.unresponsive_after",
		},
		{
			name: "bad database driver",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Driver = "oracle"
			},
			wantSub: "database.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestLogConfig_BuildLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Format: "console"}.BuildLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = LogConfig{Level: "nope", Format: "json"}.BuildLogger()
	assert.Error(t, err)
}
