package taskqueue

import (
	"context"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"go.uber.org/fx"
)

// Module exports the task queue for FX
var Module = fx.Module("taskqueue",
	fx.Provide(
		NewMetrics,
		NewQueueFromConfig,
	),
	fx.Invoke(registerHooks),
)

// QueueParams holds the dependencies for creating a queue
type QueueParams struct {
	fx.In

	Config  *config.Config
	Logger  *logger.Logger
	Metrics *Metrics `optional:"true"`
}

// NewQueueFromConfig builds a queue whose workers are child processes
func NewQueueFromConfig(p QueueParams) (*Queue, error) {
	spawner, err := NewExecSpawner(p.Config.Queue.WorkerCommand, p.Logger)
	if err != nil {
		return nil, err
	}

	return New(Options{
		MaxWorkers:  p.Config.Queue.MaxWorkers,
		TaskTimeout: p.Config.Queue.TaskTimeout,
		Session: worker.Session{
			ID:   p.Config.Queue.SessionID,
			User: p.Config.Queue.SessionUser,
		},
		LogLevel:  p.Config.Logger.Level,
		LogFormat: p.Config.Logger.Format,
		Spawner:   spawner,
		Metrics:   p.Metrics,
	}, p.Logger)
}

func registerHooks(lc fx.Lifecycle, q *Queue, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping task queue")
			return q.Shutdown(ctx)
		},
	})
}

