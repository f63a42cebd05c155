package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mediaq/internal/pkg/taskqueue"
	"mediaq/internal/service/mediaq"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <type> <payload-json>...",
		Short: "Run tasks of one type to completion and print their results as JSON lines",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd.OutOrStdout(), args[0], args[1:])
		},
	}
}

// runTasks submits one task per payload and waits for all of them
func runTasks(out io.Writer, taskType string, payloads []string) error {
	for i, p := range payloads {
		if !json.Valid([]byte(p)) {
			return fmt.Errorf("payload %d is not valid JSON", i+1)
		}
	}

	var q *taskqueue.Queue
	app := fx.New(
		mediaq.RunApp,
		fx.NopLogger,
		fx.Populate(&q),
	)
	if err := startApp(app, "media queue"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := collect(ctx, q, taskType, payloads)
	if stopErr := stopApp(app, "media queue"); err == nil {
		err = stopErr
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}

// collect returns the results in submission order
func collect(ctx context.Context, q *taskqueue.Queue, taskType string, payloads []string) ([]taskqueue.Result, error) {
	var mu sync.Mutex
	byID := make(map[string]taskqueue.Result, len(payloads))

	sub := q.OnTaskComplete(func(_ context.Context, r taskqueue.Result) error {
		mu.Lock()
		byID[r.TaskID] = r
		mu.Unlock()
		return nil
	})
	defer sub.Unsubscribe()

	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		id, err := q.AddTask(taskType, json.RawMessage(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := q.AwaitAllTasks(ctx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	results := make([]taskqueue.Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, byID[id])
	}
	return results, nil
}
