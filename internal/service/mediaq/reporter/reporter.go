// Package reporter periodically logs a summary of the queue.
package reporter

import (
	"context"
	"fmt"
	"sync"

	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StatusSource reports queue counters
type StatusSource interface {
	GetStatus() taskqueue.QueueStatus
}

// Reporter logs the queue status on a cron schedule
type Reporter struct {
	source   StatusSource
	logger   *logger.Logger
	cron     *cron.Cron
	schedule string

	mu   sync.Mutex
	last taskqueue.QueueStatus
	runs int
}

// New creates a reporter. schedule accepts standard five-field cron
// expressions and descriptors such as "@every 30s".
func New(source StatusSource, schedule string, log *logger.Logger) (*Reporter, error) {
	r := &Reporter{
		source:   source,
		logger:   log,
		cron:     cron.New(),
		schedule: schedule,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid reporter schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins reporting in the background
func (r *Reporter) Start() {
	r.cron.Start()
	r.logger.Info("Status reporter started", zap.String("schedule", r.schedule))
}

// Stop halts the schedule and waits for a running report to finish
func (r *Reporter) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report logs the current status. Idle unchanged snapshots are logged at
// debug level to keep the log quiet.
func (r *Reporter) Report() {
	s := r.source.GetStatus()

	r.mu.Lock()
	unchanged := r.runs > 0 && s == r.last
	r.last = s
	r.runs++
	r.mu.Unlock()

	fields := []zap.Field{
		zap.Int("queued", s.Queued),
		zap.Int("pending", s.Pending),
		zap.Int("running", s.Running),
		zap.Int("completed", s.Completed),
		zap.Int("failed", s.Failed),
		zap.Int("workers", s.Workers),
		zap.Int("peak_workers", s.PeakWorkers),
		zap.Int("max_workers", s.MaxWorkers),
	}
	if unchanged && s.Quiescent() {
		r.logger.Debug("Queue status", fields...)
		return
	}
	r.logger.Info("Queue status", fields...)
}
