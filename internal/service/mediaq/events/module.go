package events

import (
	"context"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module exports the redis event bridge for FX
var Module = fx.Module("events",
	fx.Provide(NewBridgeFromConfig),
	fx.Invoke(registerHooks),
)

// BridgeParams holds the dependencies for creating a bridge
type BridgeParams struct {
	fx.In

	Config *config.Config
	Client *redis.Client
	Logger *logger.Logger
}

// NewBridgeFromConfig builds a bridge on the shared redis client
func NewBridgeFromConfig(p BridgeParams) *Bridge {
	return NewBridge(p.Client, p.Config.Events.ChannelPrefix, p.Logger)
}

func registerHooks(lc fx.Lifecycle, b *Bridge, q *taskqueue.Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			b.Attach(q)
			return nil
		},
		OnStop: func(context.Context) error {
			b.Detach()
			return nil
		},
	})
}
