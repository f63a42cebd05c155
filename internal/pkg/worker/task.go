package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrTaskFinished is returned by SendMessage once the task's terminal result has been sent
var ErrTaskFinished = errors.New("task already finished")

// Task is the execution context handed to a handler for one task
type Task struct {
	// ID is the unique identifier for the task
	ID string

	// Type selects the handler
	Type string

	// Payload contains the raw data for the task
	Payload json.RawMessage

	// WorkerID is the numeric identifier of the worker running the task
	WorkerID int

	// Session carries the identity the worker was booted with
	Session Session

	send     func(json.RawMessage) error
	finished atomic.Bool
}

// NewTask builds a task whose messages go to send, for running a handler
// outside a worker runtime
func NewTask(id, taskType string, payload json.RawMessage, send func(json.RawMessage) error) *Task {
	return &Task{ID: id, Type: taskType, Payload: payload, send: send}
}

// Bind decodes the task payload into v
func (t *Task) Bind(v any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("task %s has no payload", t.ID)
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", t.Type, err)
	}
	return nil
}

// SendMessage emits an intermediate progress message attributed to this task
func (t *Task) SendMessage(v any) error {
	if t.finished.Load() {
		return ErrTaskFinished
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode task message: %w", err)
	}
	if t.send == nil {
		return nil
	}
	return t.send(raw)
}

func (t *Task) finish() {
	t.finished.Store(true)
}
