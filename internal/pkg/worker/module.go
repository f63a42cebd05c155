package worker

import (
	"context"
	"os"

	"mediaq/internal/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the worker runtime for FX
var Module = fx.Module("worker",
	fx.Provide(NewRuntimeFromParams),
)

// Registration binds a handler to the task type it serves
type Registration struct {
	Type    string
	Handler Handler
}

// AsRegistration annotates a constructor returning a Registration so the
// runtime picks it up
func AsRegistration(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"task_handlers"`))
}

// Params holds the dependencies for creating a runtime
type Params struct {
	fx.In

	Options       Options
	Logger        *logger.Logger
	Registrations []Registration `group:"task_handlers"`
}

// NewRuntimeFromParams creates a runtime with every grouped handler registered
func NewRuntimeFromParams(p Params) *Runtime {
	rt := NewRuntime(p.Options, p.Logger)
	for _, reg := range p.Registrations {
		rt.Register(reg.Type, reg.Handler)
	}
	return rt
}

// ServeStdio serves the protocol over the process's stdin/stdout and shuts
// the application down when the controller goes away
func ServeStdio(lc fx.Lifecycle, shutdowner fx.Shutdowner, rt *Runtime, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := rt.Serve(ctx, os.Stdin, os.Stdout)
				code := 0
				if err != nil {
					log.Error("Worker stopped with error", zap.Error(err))
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
