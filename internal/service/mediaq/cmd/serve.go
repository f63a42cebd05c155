package main

import (
	"fmt"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/server"
	"mediaq/internal/service/mediaq"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the task queue and its local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// runServer runs the queue until the process is signaled
func runServer() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	var srv *server.Server
	app := fx.New(
		mediaq.ServeApp(cfg),
		fx.NopLogger,
		fx.Populate(&srv),
	)

	code, err := runUntilShutdown(app, "media queue", func() {
		fmt.Printf("Media queue started on http://%s with up to %d workers\n", srv.Addr(), cfg.Queue.MaxWorkers)
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("media queue stopped with exit code %d", code)
	}
	return nil
}
