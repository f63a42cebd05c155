package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
)

// startApp starts an fx application within fx.DefaultTimeout
func startApp(app *fx.App, serviceName string) error {
	return withTimeout(func(ctx context.Context) error {
		if err := app.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s: %w", serviceName, err)
		}
		return nil
	})
}

// stopApp stops an fx application within fx.DefaultTimeout
func stopApp(app *fx.App, serviceName string) error {
	return withTimeout(func(ctx context.Context) error {
		if err := app.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop %s: %w", serviceName, err)
		}
		return nil
	})
}

// runUntilShutdown starts app, blocks until it is signaled or shuts itself
// down, then stops it and returns the requested exit code
func runUntilShutdown(app *fx.App, serviceName string, started func()) (int, error) {
	if err := startApp(app, serviceName); err != nil {
		return 1, err
	}
	if started != nil {
		started()
	}

	signal := <-app.Wait()

	if err := stopApp(app, serviceName); err != nil {
		return 1, err
	}
	return signal.ExitCode, nil
}

func withTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	return fn(ctx)
}
