package reporter

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSource struct {
	mu     sync.Mutex
	status taskqueue.QueueStatus
	calls  int
}

func (s *stubSource) GetStatus() taskqueue.QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.status
}

func (s *stubSource) set(st taskqueue.QueueStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.Wrap(zap.New(core)), logs
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&stubSource{}, "not a schedule", logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reporter schedule")
}

func TestReport_Levels(t *testing.T) {
	src := &stubSource{}
	log, logs := observed()
	r, err := New(src, "@every 1h", log)
	require.NoError(t, err)

	r.Report()
	r.Report()
	src.set(taskqueue.QueueStatus{Queued: 1, Pending: 1, MaxWorkers: 2})
	r.Report()

	entries := logs.FilterMessage("Queue status").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, int64(1), entries[2].ContextMap()["pending"])
}

func TestReport_BusyQueueAlwaysInfo(t *testing.T) {
	src := &stubSource{status: taskqueue.QueueStatus{Queued: 3, Running: 1, Workers: 1, MaxWorkers: 1}}
	log, logs := observed()
	r, err := New(src, "@every 1h", log)
	require.NoError(t, err)

	r.Report()
	r.Report()

	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.InfoLevel).FilterMessage("Queue status").Len())
}

func TestReporter_StartStop(t *testing.T) {
	src := &stubSource{}
	r, err := New(src, "@every 1s", logger.NewNop())
	require.NoError(t, err)

	r.Start()
	assert.Eventually(t, func() bool { return src.count() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))

	n := src.count()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, src.count())
}
