package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// decodeDuration parses a YAML scalar into a duration. Strings go through
// time.ParseDuration ("30s", "5m"); bare integers are nanoseconds. A nil
// node leaves dst untouched so absent keys keep their defaults.
func decodeDuration(node *yaml.Node, dst *time.Duration) error {
	if node == nil || node.IsZero() {
		return nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	*dst = time.Duration(n)
	return nil
}

// UnmarshalYAML decodes workflow settings, accepting human-readable
// durations.
func (c *WorkflowConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		DefaultStepTimeout yaml.Node `yaml:"default_step_timeout"`
		MaxStepRetries     *int      `yaml:"max_step_retries"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if err := decodeDuration(&raw.DefaultStepTimeout, &c.DefaultStepTimeout); err != nil {
		return fmt.Errorf("workflow.default_step_timeout: %w", err)
	}
	if raw.MaxStepRetries != nil {
		c.MaxStepRetries = *raw.MaxStepRetries
	}
	return nil
}

// UnmarshalYAML decodes process settings, accepting human-readable
// durations.
func (c *ProcessConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		HealthSweepInterval   yaml.Node `yaml:"health_sweep_interval"`
		MaxRestarts           *int      `yaml:"max_restarts"`
		RestartSettleDelay    yaml.Node `yaml:"restart_settle_delay"`
		DegradedAfter         yaml.Node `yaml:"degraded_after"`
		UnresponsiveAfter     yaml.Node `yaml:"unresponsive_after"`
		AutoRestartsPerMinute *int      `yaml:"auto_restarts_per_minute"`
		Capacity              yaml.Node `yaml:"capacity"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		node *yaml.Node
		dst  *time.Duration
	}{
		{"health_sweep_interval", &raw.HealthSweepInterval, &c.HealthSweepInterval},
		{"restart_settle_delay", &raw.RestartSettleDelay, &c.RestartSettleDelay},
		{"degraded_after", &raw.DegradedAfter, &c.DegradedAfter},
		{"unresponsive_after", &raw.UnresponsiveAfter, &c.UnresponsiveAfter},
	} {
		if err := decodeDuration(f.node, f.dst); err != nil {
			return fmt.Errorf("process.%s: %w", f.name, err)
		}
	}
	if raw.MaxRestarts != nil {
		c.MaxRestarts = *raw.MaxRestarts
	}
	if raw.AutoRestartsPerMinute != nil {
		c.AutoRestartsPerMinute = *raw.AutoRestartsPerMinute
	}
	if !raw.Capacity.IsZero() {
		if err := raw.Capacity.Decode(&c.Capacity); err != nil {
			return fmt.Errorf("process.capacity: %w", err)
		}
	}
	return nil
}

// UnmarshalYAML decodes cache settings, accepting human-readable durations.
func (c *CacheConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Enabled      *bool      `yaml:"enabled"`
		Addr         *string    `yaml:"addr"`
		Password     *string    `yaml:"password"`
		DB           *int       `yaml:"db"`
		DefaultTTL   yaml.Node `yaml:"default_ttl"`
		MaxRetries   *int      `yaml:"max_retries"`
		PoolSize     *int      `yaml:"pool_size"`
		MinIdleConns *int      `yaml:"min_idle_conns"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if err := decodeDuration(&raw.DefaultTTL, &c.DefaultTTL); err != nil {
		return fmt.Errorf("cache.default_ttl: %w", err)
	}
	if raw.Enabled != nil {
		c.Enabled = *raw.Enabled
	}
	if raw.Addr != nil {
		c.Addr = *raw.Addr
	}
	if raw.Password != nil {
		c.Password = *raw.Password
	}
	if raw.DB != nil {
		c.DB = *raw.DB
	}
	if raw.MaxRetries != nil {
		c.MaxRetries = *raw.MaxRetries
	}
	if raw.PoolSize != nil {
		c.PoolSize = *raw.PoolSize
	}
	if raw.MinIdleConns != nil {
		c.MinIdleConns = *raw.MinIdleConns
	}
	return nil
}

// UnmarshalYAML decodes database settings, accepting human-readable
// durations.
func (c *DatabaseConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Enabled         *bool      `yaml:"enabled"`
		Driver          *string    `yaml:"driver"`
		DSN             *string    `yaml:"dsn"`
		MaxIdleConns    *int       `yaml:"max_idle_conns"`
		MaxOpenConns    *int       `yaml:"max_open_conns"`
		ConnMaxLifetime yaml.Node `yaml:"conn_max_lifetime"`
		ConnMaxIdleTime yaml.Node `yaml:"conn_max_idle_time"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if err := decodeDuration(&raw.ConnMaxLifetime, &c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("database.conn_max_lifetime: %w", err)
	}
	if err := decodeDuration(&raw.ConnMaxIdleTime, &c.ConnMaxIdleTime); err != nil {
		return fmt.Errorf("database.conn_max_idle_time: %w", err)
	}
	if raw.Enabled != nil {
		c.Enabled = *raw.Enabled
	}
	if raw.Driver != nil {
		c.Driver = *raw.Driver
	}
	if raw.DSN != nil {
		c.DSN = *raw.DSN
	}
	if raw.MaxIdleConns != nil {
		c.MaxIdleConns = *raw.MaxIdleConns
	}
	if raw.MaxOpenConns != nil {
		c.MaxOpenConns = *raw.MaxOpenConns
	}
	return nil
}
