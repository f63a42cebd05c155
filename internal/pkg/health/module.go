package health

import (
	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module exports the health module for FX
var Module = fx.Module("health",
	fx.Provide(NewHealthService),
)

// eventChannels are the suffixes the event bridge publishes under
var eventChannels = []string{"complete", "message", "workers"}

// HealthServiceParams defines the dependencies for the health service
type HealthServiceParams struct {
	fx.In

	Config      *config.Config
	Logger      *logger.Logger
	Queue       *taskqueue.Queue
	RedisClient *redis.Client `optional:"true"`
}

// NewHealthService answers for the queue, which is critical, and for redis
// when the event bridge is enabled
func NewHealthService(params HealthServiceParams) *Service {
	service := NewService(DefaultTimeout)
	service.RegisterProvider(NewQueueProvider("taskqueue", params.Queue), true)

	if params.RedisClient != nil {
		channels := make([]string, 0, len(eventChannels))
		for _, suffix := range eventChannels {
			channels = append(channels, params.Config.Events.ChannelPrefix+":"+suffix)
		}
		service.RegisterProvider(NewRedisProvider(RedisProviderConfig{
			Name:     "redis",
			Client:   params.RedisClient,
			Channels: channels,
		}), false)
		params.Logger.Info("Registered Redis health provider")
	}

	return service
}
