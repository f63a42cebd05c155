package taskqueue

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a task
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can happen
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// task is the registry record of a submitted task
type task struct {
	id          string
	taskType    string
	payload     json.RawMessage
	status      Status
	workerID    int
	timer       *time.Timer
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

// TaskOption customizes a submission
type TaskOption func(*task)

// WithTaskID submits the task under a caller-chosen id
func WithTaskID(id string) TaskOption {
	return func(t *task) {
		t.id = id
	}
}

func (t *task) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
