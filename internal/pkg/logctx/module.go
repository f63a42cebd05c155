package logctx

import (
	"context"

	"mediaq/internal/pkg/logger"

	"go.uber.org/zap"
)

type taskKeyType struct{}
type workerKeyType struct{}

var taskKey = taskKeyType{}
var workerKey = workerKeyType{}

// WithTaskID scopes ctx to a single task execution
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskKey, taskID)
}

func TaskID(ctx context.Context) (string, bool) {
	v := ctx.Value(taskKey)
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}

// WithWorkerID scopes ctx to a worker process
func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, workerKey, workerID)
}

func WorkerID(ctx context.Context) (int, bool) {
	v := ctx.Value(workerKey)
	if v == nil {
		return 0, false
	}
	if id, ok := v.(int); ok {
		return id, true
	}
	return 0, false
}

// Logger returns log enriched with whatever task and worker identity ctx carries
func Logger(ctx context.Context, log *logger.Logger) *logger.Logger {
	var fields []zap.Field
	if id, ok := WorkerID(ctx); ok {
		fields = append(fields, zap.Int("worker_id", id))
	}
	if id, ok := TaskID(ctx); ok {
		fields = append(fields, zap.String("task_id", id))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
