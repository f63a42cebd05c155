// Package taskqueue runs tasks on a pool of worker processes.
//
// A Queue owns the task registry and the pending queue, grows the pool on
// demand up to a ceiling, dispatches each task to the least used idle
// worker, enforces a per-task timeout and replaces workers that time out or
// crash. Terminal results and progress messages are published on a Bus.
//
// All queue state is guarded by a single mutex. Worker traffic, timers and
// public calls each take it for the duration of one state transition.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mediaq/internal/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue is the public surface of the task queue
type Queue struct {
	opts   Options
	logger *logger.Logger
	bus    *Bus

	mu           sync.Mutex
	tasks        map[string]*task
	pending      []string
	workers      []*workerState
	nextWorkerID int
	peakWorkers  int
	queued       int
	running      int
	completed    int
	failed       int
	bootFailures int
	respawn      *time.Timer
	idle         chan struct{}
	closed       bool
	done         chan struct{}
}

// New creates a queue. Workers are started lazily as tasks arrive.
func New(opts Options, log *logger.Logger) (*Queue, error) {
	if opts.Spawner == nil {
		return nil, ErrNoSpawner
	}
	opts = opts.withDefaults()
	log = log.With(zap.String("component", "taskqueue"))

	q := &Queue{
		opts:   opts,
		logger: log,
		bus:    NewBus(log),
		tasks:  make(map[string]*task),
		done:   make(chan struct{}),
	}

	log.Info("Task queue created",
		zap.Int("max_workers", opts.MaxWorkers),
		zap.Duration("task_timeout", opts.TaskTimeout),
	)
	return q, nil
}

// AddTask submits a task and returns its id without waiting for it to run
func (q *Queue) AddTask(taskType string, payload any, opts ...TaskOption) (string, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}

	t := &task{
		taskType:  taskType,
		payload:   data,
		status:    StatusPending,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrQueueClosed
	}
	if _, exists := q.tasks[t.id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateTask, t.id)
	}

	q.tasks[t.id] = t
	q.pending = append(q.pending, t.id)
	q.queued++
	q.opts.Metrics.taskSubmitted(taskType)

	q.logger.Verbose("Task queued", zap.String("task_id", t.id), zap.String("task_type", taskType))

	q.dispatch()
	q.observe()
	return t.id, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}

// AwaitTask submits a task and waits for its outputs. A failed task is
// returned as a *TaskError.
func (q *Queue) AwaitTask(ctx context.Context, taskType string, payload any) (json.RawMessage, error) {
	id := uuid.NewString()
	results := make(chan Result, 1)

	sub := subscribe(q.bus, &q.bus.completes, func(r Result) bool { return r.TaskID == id },
		func(_ context.Context, r Result) error {
			results <- r
			return nil
		})
	defer sub.Unsubscribe()

	if _, err := q.AddTask(taskType, payload, WithTaskID(id)); err != nil {
		return nil, err
	}

	select {
	case r := <-results:
		if !r.Succeeded() {
			return nil, &TaskError{TaskID: r.TaskID, Err: r.Error}
		}
		return r.Outputs, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitAllTasks waits until nothing is pending or running. Notifications
// for results that led there have been delivered when it returns.
func (q *Queue) AwaitAllTasks(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.idle == nil {
		q.idle = make(chan struct{})
	}
	idle := q.idle
	if q.quiescent() {
		q.bus.enqueue(q.settle)
	}
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) quiescent() bool {
	return len(q.pending) == 0 && q.running == 0
}

// settle releases AwaitAllTasks callers. It runs on the bus after the
// deliveries queued before it and rechecks, as tasks may have been added since.
func (q *Queue) settle(context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.idle != nil && q.quiescent() {
		close(q.idle)
		q.idle = nil
	}
}

// finish records a terminal result and publishes it. Caller holds q.mu.
func (q *Queue) finish(t *task, r Result) {
	if t.status.Terminal() {
		return
	}
	t.stopTimer()
	if t.status == StatusRunning {
		q.running--
	}
	t.status = r.Status
	t.completedAt = r.CompletedAt
	delete(q.tasks, t.id)

	q.completed++
	if r.Status == StatusFailed {
		q.failed++
		q.logger.Warn("Task failed",
			zap.String("task_id", t.id),
			zap.String("task_type", t.taskType),
			zap.Int("worker_id", t.workerID),
			zap.String("error", r.ErrorMessage),
		)
	} else {
		q.logger.Verbose("Task completed",
			zap.String("task_id", t.id),
			zap.String("task_type", t.taskType),
			zap.Duration("duration", r.Duration()),
		)
	}
	q.opts.Metrics.taskCompleted(r)
	q.observe()

	q.bus.PublishComplete(r)
	if q.idle != nil && q.quiescent() {
		q.bus.enqueue(q.settle)
	}
}

// observe refreshes the gauges. Caller holds q.mu.
func (q *Queue) observe() {
	q.opts.Metrics.observe(len(q.pending), q.running, len(q.workers))
}

// publishWorkers emits the worker table. Caller holds q.mu.
func (q *Queue) publishWorkers() {
	q.bus.PublishWorkerState(q.workerInfos())
	q.observe()
}

func (q *Queue) workerInfos() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(q.workers))
	for _, w := range q.workers {
		infos = append(infos, w.info())
	}
	return infos
}

// GetStatus returns the current counters
func (q *Queue) GetStatus() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStatus{
		Queued:      q.queued,
		Pending:     len(q.pending),
		Running:     q.running,
		Completed:   q.completed,
		Failed:      q.failed,
		Workers:     len(q.workers),
		PeakWorkers: q.peakWorkers,
		MaxWorkers:  q.opts.MaxWorkers,
	}
}

// GetWorkerState returns one entry per worker slot
func (q *Queue) GetWorkerState() []WorkerInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.workerInfos()
}

// Closed reports whether Shutdown has been called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// OnTaskComplete registers a listener for terminal results
func (q *Queue) OnTaskComplete(fn CompleteListener) *Subscription {
	return q.bus.OnTaskComplete(fn)
}

// OnTaskMessage registers a listener for messages of one payload type
func (q *Queue) OnTaskMessage(msgType string, fn MessageListener) *Subscription {
	return q.bus.OnTaskMessage(msgType, fn)
}

// OnAnyTaskMessage registers a listener for every task message
func (q *Queue) OnAnyTaskMessage(fn MessageListener) *Subscription {
	return q.bus.OnAnyTaskMessage(fn)
}

// OnWorkerStateChange registers a listener for worker table changes
func (q *Queue) OnWorkerStateChange(fn WorkerStateListener) *Subscription {
	return q.bus.OnWorkerStateChange(fn)
}

// Shutdown kills every worker and drops all queue state. Tasks still
// pending or running produce no result. It waits for the worker processes
// to exit and for queued notifications to be delivered, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true

	for _, t := range q.tasks {
		t.stopTimer()
	}
	if q.respawn != nil {
		q.respawn.Stop()
		q.respawn = nil
	}
	workers := q.workers
	for _, w := range workers {
		q.killWorker(w)
	}

	dropped := len(q.tasks)
	q.tasks = make(map[string]*task)
	q.pending = nil
	q.workers = nil
	q.running = 0
	q.idle = nil
	close(q.done)
	q.observe()
	q.mu.Unlock()

	q.logger.Info("Task queue shutting down",
		zap.Int("workers", len(workers)),
		zap.Int("dropped_tasks", dropped),
	)

	var err error
	for _, w := range workers {
		select {
		case <-w.proc.Done():
		case <-ctx.Done():
			err = fmt.Errorf("taskqueue: waiting for worker %d to exit: %w", w.id, ctx.Err())
		}
		if err != nil {
			break
		}
	}

	if busErr := q.bus.Close(ctx); err == nil {
		err = busErr
	}
	return err
}
