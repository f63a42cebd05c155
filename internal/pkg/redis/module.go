package redis

import (
	"context"
	"fmt"
	"time"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/retry"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the redis module for FX
var Module = fx.Module("redis",
	fx.Provide(NewRedisClient),
	fx.Invoke(registerHooks),
)

// Options maps the redis config section onto client options
func Options(cfg config.RedisConfig) *redisv9.Options {
	return &redisv9.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  time.Duration(cfg.DialTimeoutSec) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}
}

// connectPolicy gives a local redis a few seconds to come up
var connectPolicy = retry.ExponentialBackoff(200*time.Millisecond, 2*time.Second, true, 5)

// NewRedisClient constructs a shared Redis client and checks it is reachable
func NewRedisClient(cfg *config.Config, log *logger.Logger) (*redisv9.Client, error) {
	client := redisv9.NewClient(Options(cfg.Redis))

	err := retry.Do(context.Background(), connectPolicy, func(ctx context.Context) error {
		err := client.Ping(ctx).Err()
		if err != nil {
			log.Warn("Redis not reachable yet", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return err
	}, nil)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("Redis client initialized", zap.String("addr", cfg.Redis.Addr))
	return client, nil
}

func registerHooks(lc fx.Lifecycle, rdb *redisv9.Client, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Redis client")
			return rdb.Close()
		},
	})
}
