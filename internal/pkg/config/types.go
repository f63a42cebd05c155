package config

import "time"

// Config holds the application configuration
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Events   EventsConfig   `mapstructure:"events"`
	Reporter ReporterConfig `mapstructure:"reporter"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json console"`
	OutputPath string `mapstructure:"output_path" validate:"required"`
}

// ServerConfig holds the local control API server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host" validate:"required"`
	Port            int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    int    `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// QueueConfig holds task queue and worker pool configuration
type QueueConfig struct {
	MaxWorkers  int           `mapstructure:"max_workers" validate:"gte=1"`
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"gt=0"`

	// WorkerCommand is the argv used to start a worker process.
	// Empty means the running executable with the "worker" subcommand.
	WorkerCommand []string `mapstructure:"worker_command"`

	SessionID   string `mapstructure:"session_id"`
	SessionUser string `mapstructure:"session_user"`
}

// AuthConfig holds control API authentication configuration.
// An empty secret leaves the API unauthenticated.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db" validate:"gte=0"`
	PoolSize        int    `mapstructure:"pool_size" validate:"gte=1"`
	DialTimeoutSec  int    `mapstructure:"dial_timeout_sec" validate:"gte=0"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" validate:"gte=0"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec" validate:"gte=0"`
}

// EventsConfig controls the Redis event bridge
type EventsConfig struct {
	RedisEnabled  bool   `mapstructure:"redis_enabled"`
	ChannelPrefix string `mapstructure:"channel_prefix" validate:"required_if=RedisEnabled true"`
}

// ReporterConfig controls the periodic queue status reporter
type ReporterConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
