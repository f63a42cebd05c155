package redis

import (
	"context"
	"testing"
	"time"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/retry"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Addr: "h:1", DB: 2, PoolSize: 7, DialTimeoutSec: 3})
	assert.Equal(t, "h:1", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, "3s", opts.DialTimeout.String())
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{Redis: config.RedisConfig{Addr: mr.Addr(), PoolSize: 1}}
	client, err := NewRedisClient(cfg, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	saved := connectPolicy
	connectPolicy = retry.ExponentialBackoff(time.Millisecond, time.Millisecond, false, 2)
	t.Cleanup(func() { connectPolicy = saved })

	cfg := &config.Config{Redis: config.RedisConfig{Addr: addr, PoolSize: 1, DialTimeoutSec: 1}}
	_, err := NewRedisClient(cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach redis")
}
