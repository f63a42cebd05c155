package taskqueue

import (
	"encoding/json"
	"time"
)

// Result is the terminal outcome of a task, delivered once to completion listeners
type Result struct {
	TaskID       string          `json:"taskId"`
	TaskType     string          `json:"taskType"`
	Status       Status          `json:"status"`
	Error        error           `json:"-"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Outputs      json.RawMessage `json:"outputs,omitempty"`
	WorkerID     int             `json:"workerId"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    time.Time       `json:"startedAt"`
	CompletedAt  time.Time       `json:"completedAt"`
}

// Succeeded reports whether the task produced outputs
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Duration is the time the task spent running
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TaskMessage is an intermediate progress payload sent by a running task
type TaskMessage struct {
	TaskID   string `json:"taskId"`
	TaskType string `json:"taskType,omitempty"`
	// Type is the payload's own "type" discriminator, empty when it has none
	Type     string          `json:"type,omitempty"`
	WorkerID int             `json:"workerId"`
	Message  json.RawMessage `json:"message"`
}

func newResult(t *task, err error, outputs json.RawMessage) Result {
	r := Result{
		TaskID:      t.id,
		TaskType:    t.taskType,
		Status:      StatusSucceeded,
		Outputs:     outputs,
		WorkerID:    t.workerID,
		CreatedAt:   t.createdAt,
		StartedAt:   t.startedAt,
		CompletedAt: time.Now(),
	}
	if err != nil {
		r.Status = StatusFailed
		r.Error = err
		r.ErrorMessage = err.Error()
		r.Outputs = nil
	}
	return r
}
