package worker

import (
	"context"

	"mediaq/internal/pkg/logctx"
)

// TracingMiddleware scopes the handler context to the task and worker it runs on
func TracingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			ctx = logctx.WithTaskID(ctx, task.ID)
			ctx = logctx.WithWorkerID(ctx, task.WorkerID)
			return next.Process(ctx, task)
		})
	}
}
