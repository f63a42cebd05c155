package taskqueue

import "time"

// QueueStatus is a point-in-time view of the queue counters.
// Completed counts every terminal result; Failed is the failed share of it.
type QueueStatus struct {
	Queued      int `json:"queued"`
	Pending     int `json:"pending"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Workers     int `json:"workers"`
	PeakWorkers int `json:"peakWorkers"`
	MaxWorkers  int `json:"maxWorkers"`
}

// Quiescent reports whether nothing is waiting or running
func (s QueueStatus) Quiescent() bool {
	return s.Pending == 0 && s.Running == 0
}

// WorkerInfo describes one worker slot
type WorkerInfo struct {
	ID              int       `json:"id"`
	PID             int       `json:"pid"`
	Ready           bool      `json:"ready"`
	Idle            bool      `json:"idle"`
	CurrentTaskID   string    `json:"currentTaskId,omitempty"`
	CurrentTaskType string    `json:"currentTaskType,omitempty"`
	TaskStartedAt   time.Time `json:"taskStartedAt"`
	TasksProcessed  int       `json:"tasksProcessed"`
}
