package health

import (
	"context"
	"time"

	"mediaq/internal/pkg/taskqueue"
)

// QueueSource is the part of the task queue the provider inspects
type QueueSource interface {
	Closed() bool
	GetStatus() taskqueue.QueueStatus
}

// QueueProvider reports the task queue DOWN once shut down and DEGRADED
// while the pool is at its ceiling with work still waiting
type QueueProvider struct {
	name  string
	queue QueueSource
}

// NewQueueProvider creates a queue health provider
func NewQueueProvider(name string, queue QueueSource) *QueueProvider {
	if name == "" {
		name = "taskqueue"
	}
	return &QueueProvider{name: name, queue: queue}
}

// Name returns the provider name
func (p *QueueProvider) Name() string {
	return p.name
}

// Check performs the health check
func (p *QueueProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.name,
		Status:    StatusUp,
		CheckedAt: time.Now(),
	}

	if p.queue.Closed() {
		result.Status = StatusDown
		result.Error = "task queue is shut down"
		return result
	}

	status := p.queue.GetStatus()
	result.Details = map[string]any{
		"pending":      status.Pending,
		"running":      status.Running,
		"workers":      status.Workers,
		"max_workers":  status.MaxWorkers,
		"peak_workers": status.PeakWorkers,
	}

	if status.Workers >= status.MaxWorkers && status.Pending > 0 {
		result.Status = StatusDegraded
		result.Details["reason"] = "worker pool saturated"
	}
	return result
}
