package mediaq

import (
	"testing"

	"mediaq/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
)

func TestServeApp_Graph(t *testing.T) {
	for _, redisEnabled := range []bool{false, true} {
		cfg := &config.Config{}
		cfg.Events.RedisEnabled = redisEnabled
		assert.NoError(t, fx.ValidateApp(ServeApp(cfg), fx.NopLogger), "redis enabled: %v", redisEnabled)
	}
}

func TestRunApp_Graph(t *testing.T) {
	assert.NoError(t, fx.ValidateApp(RunApp, fx.NopLogger))
}

func TestWorkerApp_Graph(t *testing.T) {
	assert.NoError(t, fx.ValidateApp(WorkerApp, fx.NopLogger))
}
