package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"mediaq/internal/pkg/errorsx"
	"mediaq/internal/pkg/logger"

	"go.uber.org/zap"
)

// RecoveryMiddleware creates a middleware that turns handler panics into task failures
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (out any, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := string(debug.Stack())
					err = errorsx.WithStack(fmt.Errorf("panic recovered: %v", r), stack)
					out = nil

					log.Exception("Task handler panicked", err, stack,
						zap.String("task_id", task.ID),
						zap.String("task_type", task.Type),
					)
				}
			}()

			return next.Process(ctx, task)
		})
	}
}
