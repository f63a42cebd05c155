package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 10*time.Minute, cfg.Queue.TaskTimeout)
	assert.GreaterOrEqual(t, cfg.Queue.MaxWorkers, 1)
	assert.Empty(t, cfg.Queue.WorkerCommand)
	assert.Equal(t, "@every 30s", cfg.Reporter.Schedule)
}

func TestLoad_FileValues(t *testing.T) {
	cfg, err := load(newTestViper(t, `
queue:
  max_workers: 3
  task_timeout: 50ms
  worker_command: ["/usr/bin/mediaq", "worker"]
  session_id: s-1
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Queue.MaxWorkers)
	assert.Equal(t, 50*time.Millisecond, cfg.Queue.TaskTimeout)
	assert.Equal(t, []string{"/usr/bin/mediaq", "worker"}, cfg.Queue.WorkerCommand)
	assert.Equal(t, "s-1", cfg.Queue.SessionID)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDIAQ_QUEUE_MAX_WORKERS", "7")
	t.Setenv("MEDIAQ_LOGGER_LEVEL", "debug")

	cfg, err := load(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Queue.MaxWorkers)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := load(newTestViper(t, `
queue:
  max_workers: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = load(newTestViper(t, `
logger:
  level: loud
`))
	require.Error(t, err)
}
