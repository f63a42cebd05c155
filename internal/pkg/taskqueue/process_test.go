package taskqueue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testWorkerEnv = "MEDIAQ_TEST_WORKER"

// TestMain turns the test binary into a worker process when the exec
// spawner starts it
func TestMain(m *testing.M) {
	if os.Getenv(testWorkerEnv) == "1" {
		os.Exit(runTestWorker())
	}
	os.Exit(m.Run())
}

func runTestWorker() int {
	opts, err := worker.LoadOptions()
	if err != nil {
		return 2
	}
	log, err := logger.New(config.LoggerConfig{Level: "info", Format: "json", OutputPath: "stderr"})
	if err != nil {
		return 2
	}

	rt := worker.NewRuntime(opts, log)
	rt.Register("echo", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
		return task.Payload, nil
	}))
	rt.Register("env", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
		return map[string]string{"tmpdir": os.Getenv("TMPDIR"), "secret": os.Getenv("SECRET_TOKEN")}, nil
	}))
	rt.Register("crash", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
		os.Exit(3)
		return nil, nil
	}))

	if err := rt.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		return 1
	}
	return 0
}

func TestWorkerEnv(t *testing.T) {
	env := workerEnv([]string{
		"PATH=/bin",
		"TMPDIR=/tmp/x",
		"TEMP=/t",
		"HOME=/home/u",
		"MEDIAQ_LOGGER_LEVEL=debug",
		"MEDIAQ_WORKER_OPTIONS=stale",
		"AWS_SECRET_ACCESS_KEY=nope",
		"malformed",
	})

	assert.ElementsMatch(t, []string{
		"PATH=/bin",
		"TMPDIR=/tmp/x",
		"TEMP=/t",
		"HOME=/home/u",
		"MEDIAQ_LOGGER_LEVEL=debug",
	}, env)
}

func TestNewExecSpawner_DefaultsToSelf(t *testing.T) {
	s, err := NewExecSpawner(nil, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, s.Command, 2)
	assert.Equal(t, "worker", s.Command[1])
}

func TestExecSpawner_EndToEnd(t *testing.T) {
	t.Setenv(testWorkerEnv, "1")
	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv("SECRET_TOKEN", "hunter2")

	core, logs := observer.New(zapcore.InfoLevel)
	log := logger.Wrap(zap.New(core))

	spawner, err := NewExecSpawner([]string{os.Args[0]}, log)
	require.NoError(t, err)

	q, err := New(Options{
		MaxWorkers:  1,
		TaskTimeout: 10 * time.Second,
		Spawner:     spawner,
		Session:     worker.Session{ID: "exec"},
		OnFatal:     func(err error) { t.Errorf("fatal: %v", err) },
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	out, err := q.AwaitTask(ctx, "echo", map[string]int{"n": 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7}`, string(out))

	out, err = q.AwaitTask(ctx, "env", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tmpdir":"`+os.Getenv("TMPDIR")+`","secret":""}`, string(out))

	_, err = q.AwaitTask(ctx, "crash", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkerCrashed))

	out, err = q.AwaitTask(ctx, "echo", "again")
	require.NoError(t, err)
	assert.JSONEq(t, `"again"`, string(out))

	workers := q.GetWorkerState()
	require.Len(t, workers, 1)
	assert.Equal(t, 1, workers[0].ID)
	assert.Equal(t, 3, workers[0].TasksProcessed)

	require.NoError(t, q.Shutdown(ctx))

	relayed := logs.FilterMessage("worker").FilterField(zap.Int("worker_id", 1))
	assert.Positive(t, relayed.Len(), "worker stderr should be relayed")
}
