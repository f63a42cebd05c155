package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider checks the redis server that carries queue events
type RedisProvider struct {
	cfg RedisProviderConfig
}

// RedisProviderConfig configures the Redis health provider
type RedisProviderConfig struct {
	Name   string
	Client redis.UniversalClient
	// Degraded is the PING latency above which redis reports DEGRADED (default: 100ms)
	Degraded time.Duration
	// Channels are reported with their current subscriber counts
	Channels []string
}

// NewRedisProvider creates a new Redis health provider
func NewRedisProvider(cfg RedisProviderConfig) *RedisProvider {
	if cfg.Name == "" {
		cfg.Name = "redis"
	}
	if cfg.Degraded <= 0 {
		cfg.Degraded = 100 * time.Millisecond
	}
	return &RedisProvider{cfg: cfg}
}

// Name returns the provider name
func (p *RedisProvider) Name() string {
	return p.cfg.Name
}

// Check pings redis and counts event subscribers. A slow ping degrades;
// having no subscribers does not.
func (p *RedisProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.cfg.Name,
		Status:    StatusUp,
		CheckedAt: time.Now(),
		Details:   make(map[string]any),
	}

	start := time.Now()
	if err := p.cfg.Client.Ping(ctx).Err(); err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("failed to ping redis: %v", err)
		return result
	}
	latency := time.Since(start)
	result.Details["latency_ms"] = latency.Milliseconds()

	if len(p.cfg.Channels) > 0 {
		subs, err := p.cfg.Client.PubSubNumSub(ctx, p.cfg.Channels...).Result()
		if err != nil {
			result.Status = StatusDegraded
			result.Error = fmt.Sprintf("failed to count subscribers: %v", err)
			return result
		}
		result.Details["subscribers"] = subs
	}

	if latency > p.cfg.Degraded {
		result.Status = StatusDegraded
		result.Details["message"] = "high latency detected"
	}
	return result
}
