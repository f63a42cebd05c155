package server

import (
	"context"

	"mediaq/internal/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the server module for FX
var Module = fx.Module("server",
	fx.Provide(NewEchoServer),
	fx.Invoke(registerHooks),
)

// registerHooks binds the port during start so a taken port fails the app,
// then serves in the background. A serve error shuts the app down with code 1.
func registerHooks(lc fx.Lifecycle, srv *Server, shutdowner fx.Shutdowner, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := srv.Listen(); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("Server error", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, srv.ShutdownTimeout())
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
