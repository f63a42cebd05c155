package main

import (
	"os"

	"mediaq/internal/service/mediaq"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// newWorkerCmd creates the worker process entry point. The queue starts it;
// it is not meant to be run by hand.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run as a task queue worker process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

// runWorker serves tasks until the controller closes stdin
func runWorker() error {
	app := fx.New(
		mediaq.WorkerApp,
		fx.NopLogger,
	)

	code, err := runUntilShutdown(app, "worker", nil)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
