package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the complete eduflow configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Process   ProcessConfig   `yaml:"process"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// WorkflowConfig configures the orchestration engine.
type WorkflowConfig struct {
	// DefaultStepTimeout applies to blueprints that declare no timeout.
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`
	// MaxStepRetries caps in-place re-dispatches of a failed step.
	MaxStepRetries int `yaml:"max_step_retries"`
}

// ProcessConfig configures the process lifecycle manager.
type ProcessConfig struct {
	HealthSweepInterval time.Duration `yaml:"health_sweep_interval"`
	MaxRestarts         int           `yaml:"max_restarts"`
	RestartSettleDelay  time.Duration `yaml:"restart_settle_delay"`
	// DegradedAfter is the inactivity threshold for degraded (inclusive).
	DegradedAfter time.Duration `yaml:"degraded_after"`
	// UnresponsiveAfter is the inactivity threshold for unresponsive.
	UnresponsiveAfter time.Duration `yaml:"unresponsive_after"`
	// AutoRestartsPerMinute rate-limits health-sweep restart attempts.
	AutoRestartsPerMinute int `yaml:"auto_restarts_per_minute"`
	// Capacity bounds total resource grants across all processes.
	Capacity ResourceCapacity `yaml:"capacity"`
}

// ResourceCapacity bounds the resource manager's total grants.
type ResourceCapacity struct {
	MemoryMB     int `yaml:"memory_mb"`
	ComputeUnits int `yaml:"compute_units"`
	StorageMB    int `yaml:"storage_mb"`
	NetworkKbps  int `yaml:"network_kbps"`
}

// CacheConfig configures the redis status cache.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	MaxRetries   int           `yaml:"max_retries"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
}

// DatabaseConfig configures the execution history store.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// TelemetryConfig configures the OpenTelemetry SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Workflow: WorkflowConfig{
			DefaultStepTimeout: 30 * time.Second,
			MaxStepRetries:     2,
		},
		Process: ProcessConfig{
			HealthSweepInterval:   30 * time.Second,
			MaxRestarts:           5,
			RestartSettleDelay:    time.Second,
			DegradedAfter:         time.Minute,
			UnresponsiveAfter:     5 * time.Minute,
			AutoRestartsPerMinute: 6,
			Capacity: ResourceCapacity{
				MemoryMB:     16384,
				ComputeUnits: 64,
				StorageMB:    65536,
				NetworkKbps:  1048576,
			},
		},
		Cache: CacheConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			DefaultTTL:   10 * time.Minute,
			MaxRetries:   3,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "eduflow.db",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "eduflow",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Validate checks the configuration for internally inconsistent values.
// Errors name the offending field.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Workflow.DefaultStepTimeout <= 0 {
		return fmt.Errorf("workflow.default_step_timeout: must be positive")
	}
	if c.Workflow.MaxStepRetries < 0 {
		return fmt.Errorf("workflow.max_step_retries: must not be negative")
	}
	if c.Process.HealthSweepInterval <= 0 {
		return fmt.Errorf("process.health_sweep_interval: must be positive")
	}
	if c.Process.MaxRestarts < 0 {
		return fmt.Errorf("process.max_restarts: must not be negative")
	}
	if c.Process.DegradedAfter <= 0 || c.Process.UnresponsiveAfter <= c.Process.DegradedAfter {
		return fmt.Errorf("process.unresponsive_after: must be greater than process.degraded_after")
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite", "mysql", "postgres":
		default:
			return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
		}
	}
	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		return fmt.Errorf("telemetry.sample_rate: must be in [0, 1]")
	}
	return nil
}

// BuildLogger constructs a zap logger from the log configuration.
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(c.Level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if c.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
