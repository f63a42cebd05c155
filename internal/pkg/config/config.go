package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (MEDIAQ_QUEUE_MAX_WORKERS, ...)
const EnvPrefix = "MEDIAQ"

// NewConfig creates and returns a new Config instance
// It loads configuration from file, environment variables, and defaults
func NewConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

// load applies env overrides, decodes and validates the configuration held by v
func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(" "),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stderr")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("queue.max_workers", runtime.NumCPU())
	v.SetDefault("queue.task_timeout", "10m")
	v.SetDefault("queue.worker_command", []string{})
	v.SetDefault("queue.session_id", "")
	v.SetDefault("queue.session_user", "")

	v.SetDefault("auth.secret", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout_sec", 5)
	v.SetDefault("redis.read_timeout_sec", 3)
	v.SetDefault("redis.write_timeout_sec", 3)

	v.SetDefault("events.redis_enabled", false)
	v.SetDefault("events.channel_prefix", "mediaq:events")

	v.SetDefault("reporter.enabled", true)
	v.SetDefault("reporter.schedule", "@every 30s")
}
