// Package mediaq wires the background media task queue into runnable applications.
package mediaq

import (
	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/health"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/redis"
	"mediaq/internal/pkg/server"
	"mediaq/internal/pkg/taskqueue"
	"mediaq/internal/pkg/worker"
	"mediaq/internal/service/mediaq/events"
	"mediaq/internal/service/mediaq/handler"
	"mediaq/internal/service/mediaq/media"
	"mediaq/internal/service/mediaq/reporter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// metricsModule provides one registry as both registerer and gatherer
var metricsModule = fx.Module("metrics",
	fx.Provide(
		newRegistry,
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		func(r *prometheus.Registry) prometheus.Gatherer { return r },
	),
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ServeApp runs the queue behind the local control API until stopped.
// The redis client and event bridge are only wired when enabled in cfg.
func ServeApp(cfg *config.Config) fx.Option {
	opts := []fx.Option{
		config.Supply(cfg),
		logger.Module,
		metricsModule,
		taskqueue.Module,
		health.Module,
		server.Module,
		reporter.Module,

		fx.Provide(newTaskHandler),
		fx.Invoke(registerRoutes),
	}
	if cfg.Events.RedisEnabled {
		opts = append(opts, redis.Module, events.Module)
	}
	return fx.Options(opts...)
}

// RunApp provides just the queue, for one-shot batch runs
var RunApp = fx.Options(
	config.Module,
	logger.Module,
	metricsModule,
	taskqueue.Module,
)

// WorkerApp is the entry point of a spawned worker process. It reads its
// boot options from the environment and serves tasks over stdio.
var WorkerApp = fx.Options(
	fx.Provide(
		worker.LoadOptions,
		newWorkerLogger,
	),
	worker.Module,
	media.Module,
	fx.Invoke(worker.ServeStdio),
)

// newWorkerLogger logs to stderr since stdout carries the protocol
func newWorkerLogger(opts worker.Options) (*logger.Logger, error) {
	return logger.New(config.LoggerConfig{
		Level:      opts.LogLevel,
		Format:     opts.LogFormat,
		OutputPath: "stderr",
	})
}

func newTaskHandler(q *taskqueue.Queue, log *logger.Logger) *handler.TaskHandler {
	return handler.NewTaskHandler(q, log)
}

// RoutesParams holds dependencies for registering routes
type RoutesParams struct {
	fx.In

	Config   *config.Config
	Server   *server.Server
	Handler  *handler.TaskHandler
	Health   *health.Service
	Gatherer prometheus.Gatherer
}

func registerRoutes(p RoutesParams) {
	handler.RegisterRoutes(p.Server.GetEcho(), p.Handler, p.Health, p.Gatherer, p.Config.Auth.Secret)
}
