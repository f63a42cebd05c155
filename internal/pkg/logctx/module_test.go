package logctx

import (
	"context"
	"testing"

	"mediaq/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTaskAndWorkerID(t *testing.T) {
	ctx := context.Background()

	_, ok := TaskID(ctx)
	assert.False(t, ok)
	_, ok = WorkerID(ctx)
	assert.False(t, ok)

	ctx = WithWorkerID(WithTaskID(ctx, "t-1"), 3)

	id, ok := TaskID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "t-1", id)

	wid, ok := WorkerID(ctx)
	assert.True(t, ok)
	assert.Equal(t, 3, wid)
}

func TestLogger_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := logger.Wrap(zap.New(core))

	ctx := WithWorkerID(WithTaskID(context.Background(), "t-9"), 1)
	Logger(ctx, base).Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-9", fields["task_id"])
	assert.Equal(t, int64(1), fields["worker_id"])
}
