package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eduflow/eduflow/workflow"
)

// Config configures the status cache connection.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	DefaultTTL   time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DB:           0,
		DefaultTTL:   10 * time.Minute,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// StatusCache caches workflow status reports in redis so dashboards and
// sibling agents can read workflow progress without holding a reference to
// the owning orchestrator. Implements workflow.StatusCache.
type StatusCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatusCache connects to redis and verifies the connection.
func NewStatusCache(config Config, logger *zap.Logger) (*StatusCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	logger.Info("status cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", ttl),
	)

	return &StatusCache{
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "status_cache")),
	}, nil
}

func statusKey(workflowID string) string {
	return "eduflow:workflow:status:" + workflowID
}

// SetStatus stores a status report under the workflow id.
func (c *StatusCache) SetStatus(ctx context.Context, report workflow.StatusReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal status report: %w", err)
	}
	if err := c.redis.Set(ctx, statusKey(report.WorkflowID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status report: %w", err)
	}
	return nil
}

// GetStatus loads a cached status report. The second return is false when
// the id has no cached report.
func (c *StatusCache) GetStatus(ctx context.Context, workflowID string) (workflow.StatusReport, bool, error) {
	payload, err := c.redis.Get(ctx, statusKey(workflowID)).Bytes()
	if err == redis.Nil {
		return workflow.StatusReport{}, false, nil
	}
	if err != nil {
		return workflow.StatusReport{}, false, fmt.Errorf("failed to read status report: %w", err)
	}

	var report workflow.StatusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return workflow.StatusReport{}, false, fmt.Errorf("failed to unmarshal status report: %w", err)
	}
	return report, true, nil
}

// Delete removes a cached report.
func (c *StatusCache) Delete(ctx context.Context, workflowID string) error {
	return c.redis.Del(ctx, statusKey(workflowID)).Err()
}

// Close releases the redis connection.
func (c *StatusCache) Close() error {
	return c.redis.Close()
}
