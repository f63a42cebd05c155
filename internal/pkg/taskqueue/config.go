package taskqueue

import (
	"fmt"
	"time"

	"mediaq/internal/pkg/retry"
	"mediaq/internal/pkg/worker"
)

// DefaultTaskTimeout bounds a single task execution
const DefaultTaskTimeout = 600000 * time.Millisecond

// DefaultBootRetry allows three workers in a row to die before reporting
// ready, then fails whatever is still pending
var DefaultBootRetry = retry.ExponentialBackoff(100*time.Millisecond, 5*time.Second, true, 3)

// Options configures a Queue
type Options struct {
	// MaxWorkers is the ceiling on live worker processes
	MaxWorkers int

	// TaskTimeout is armed for every dispatched task
	TaskTimeout time.Duration

	// Session is handed to every worker in its boot options
	Session worker.Session

	// LogLevel and LogFormat configure worker-side logging
	LogLevel  string
	LogFormat string

	// BootRetry spaces out respawns after workers exit before ready.
	// MaxAttempts is the number of consecutive boot failures tolerated.
	BootRetry retry.Policy

	// Spawner starts worker processes
	Spawner Spawner

	// Metrics is optional
	Metrics *Metrics

	// OnFatal receives internal consistency violations. The default panics.
	OnFatal func(error)
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 1
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	if o.BootRetry.MaxAttempts <= 0 {
		o.BootRetry = DefaultBootRetry
	}
	if o.OnFatal == nil {
		o.OnFatal = func(err error) {
			panic(fmt.Sprintf("taskqueue: fatal: %v", err))
		}
	}
	return o
}
