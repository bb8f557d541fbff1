package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix for environment overrides.
const envPrefix = "EDUFLOW"

// Loader loads configuration with the precedence defaults → YAML → env.
type Loader struct {
	configPath string
}

// NewLoader creates a loader with no config file.
func NewLoader() *Loader {
	return &Loader{}
}

// WithConfigPath sets the YAML config path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func applyEnv(cfg *Config) {
	envString(&cfg.Log.Level, "LOG_LEVEL")
	envString(&cfg.Log.Format, "LOG_FORMAT")

	envDuration(&cfg.Workflow.DefaultStepTimeout, "WORKFLOW_DEFAULT_STEP_TIMEOUT")
	envInt(&cfg.Workflow.MaxStepRetries, "WORKFLOW_MAX_STEP_RETRIES")

	envDuration(&cfg.Process.HealthSweepInterval, "PROCESS_HEALTH_SWEEP_INTERVAL")
	envInt(&cfg.Process.MaxRestarts, "PROCESS_MAX_RESTARTS")
	envDuration(&cfg.Process.DegradedAfter, "PROCESS_DEGRADED_AFTER")
	envDuration(&cfg.Process.UnresponsiveAfter, "PROCESS_UNRESPONSIVE_AFTER")

	envBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	envString(&cfg.Cache.Addr, "CACHE_ADDR")
	envString(&cfg.Cache.Password, "CACHE_PASSWORD")

	envBool(&cfg.Database.Enabled, "DATABASE_ENABLED")
	envString(&cfg.Database.Driver, "DATABASE_DRIVER")
	envString(&cfg.Database.DSN, "DATABASE_DSN")

	envBool(&cfg.Telemetry.Enabled, "TELEMETRY_ENABLED")
	envString(&cfg.Telemetry.OTLPEndpoint, "TELEMETRY_OTLP_ENDPOINT")

	envBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	envString(&cfg.Metrics.Addr, "METRICS_ADDR")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + "_" + key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(envPrefix + "_" + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(envPrefix + "_" + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(envPrefix + "_" + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
