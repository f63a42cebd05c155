package worker

import (
	"context"
	"time"

	"mediaq/internal/pkg/logctx"
	"mediaq/internal/pkg/logger"

	"go.uber.org/zap"
)

// LoggingMiddleware creates a middleware that logs task processing
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (any, error) {
			taskLog := logctx.Logger(ctx, log).With(zap.String("task_type", task.Type))

			taskLog.Verbose("Task processing started")
			start := time.Now()

			out, err := next.Process(ctx, task)

			taskLog = taskLog.With(zap.Duration("duration", time.Since(start)))
			if err != nil {
				taskLog.Warn("Task processing failed", zap.Error(err))
			} else {
				taskLog.Info("Task processing completed")
			}

			return out, err
		})
	}
}
