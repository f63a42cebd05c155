package taskqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskTimeout fails a task that produced no terminal result in time
	ErrTaskTimeout = errors.New("Task timeout")

	// ErrWorkerCrashed fails a task whose worker process died under it
	ErrWorkerCrashed = errors.New("Worker crashed")

	// ErrProtocolViolation is raised when a worker reports failure without an error payload
	ErrProtocolViolation = errors.New("taskqueue: failed result carries no error")

	// ErrQueueClosed is returned by operations on a queue that has been shut down
	ErrQueueClosed = errors.New("taskqueue: queue is shut down")

	// ErrDuplicateTask is returned when a caller-supplied task id is already known
	ErrDuplicateTask = errors.New("taskqueue: duplicate task id")

	// ErrNoSpawner is returned when a queue is built without a way to start workers
	ErrNoSpawner = errors.New("taskqueue: spawner is required")
)

// TaskError is returned by AwaitTask when the task fails
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func errProtocol(taskID string, workerID int) error {
	return fmt.Errorf("%w: task %s on worker %d", ErrProtocolViolation, taskID, workerID)
}
