package reporter

import (
	"context"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"go.uber.org/fx"
)

// Module exports the status reporter for FX
var Module = fx.Module("reporter",
	fx.Invoke(registerHooks),
)

// Params holds the reporter's dependencies
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Queue     *taskqueue.Queue
	Logger    *logger.Logger
}

func registerHooks(p Params) error {
	if !p.Config.Reporter.Enabled {
		return nil
	}

	r, err := New(p.Queue, p.Config.Reporter.Schedule, p.Logger)
	if err != nil {
		return err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
	return nil
}
