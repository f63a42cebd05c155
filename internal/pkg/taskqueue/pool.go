package taskqueue

import (
	"time"

	"mediaq/internal/pkg/errorsx"
	"mediaq/internal/pkg/ipc"
	"mediaq/internal/pkg/worker"

	"go.uber.org/zap"
)

// workerState is the bookkeeping for one worker process
type workerState struct {
	id             int
	proc           Process
	ready          bool
	taskID         string
	taskType       string
	taskStartedAt  time.Time
	tasksProcessed int
	// retired workers have been killed or replaced; their late traffic is ignored
	retired bool
}

// idle reports whether the worker can take a task. A worker that has not
// reported ready is never idle.
func (w *workerState) idle() bool {
	return w.ready && !w.retired && w.taskID == ""
}

func (w *workerState) info() WorkerInfo {
	info := WorkerInfo{
		ID:              w.id,
		Ready:           w.ready,
		Idle:            w.idle(),
		CurrentTaskID:   w.taskID,
		CurrentTaskType: w.taskType,
		TaskStartedAt:   w.taskStartedAt,
		TasksProcessed:  w.tasksProcessed,
	}
	if w.proc != nil {
		info.PID = w.proc.PID()
	}
	return info
}

func (q *Queue) allocateID() int {
	q.nextWorkerID++
	return q.nextWorkerID
}

func (q *Queue) notReady() int {
	n := 0
	for _, w := range q.workers {
		if !w.ready {
			n++
		}
	}
	return n
}

// createWorker spawns a process for slot id and appends its record.
// Caller holds q.mu.
func (q *Queue) createWorker(id, tasksProcessed int) (*workerState, error) {
	w, err := q.spawn(id, tasksProcessed)
	if err != nil {
		return nil, err
	}
	q.workers = append(q.workers, w)
	q.peakWorkers = max(q.peakWorkers, len(q.workers))
	return w, nil
}

func (q *Queue) spawn(id, tasksProcessed int) (*workerState, error) {
	w := &workerState{id: id, tasksProcessed: tasksProcessed}

	opts := worker.Options{
		WorkerID:  id,
		Session:   q.opts.Session,
		LogLevel:  q.opts.LogLevel,
		LogFormat: q.opts.LogFormat,
	}
	proc, err := q.opts.Spawner.Spawn(opts, ProcessHandlers{
		OnMessage: func(msg ipc.Message) { q.onWorkerMessage(w, msg) },
		OnExit:    func(code int, err error) { q.onWorkerExit(w, code, err) },
	})
	if err != nil {
		return nil, err
	}
	w.proc = proc

	q.logger.Info("Worker created", zap.Int("worker_id", id), zap.Int("pid", proc.PID()))
	return w, nil
}

// replaceWorker retires w and puts a fresh process in its slot, keeping the
// slot id and throughput. Caller holds q.mu.
func (q *Queue) replaceWorker(w *workerState, reason string) {
	w.retired = true
	idx := q.indexOf(w)
	if idx < 0 {
		return
	}
	q.opts.Metrics.workerRestarted(reason)

	fresh, err := q.spawn(w.id, w.tasksProcessed)
	if err != nil {
		q.logger.Error("Failed to replace worker", zap.Int("worker_id", w.id), zap.Error(err))
		q.removeWorker(w)
		return
	}
	q.workers[idx] = fresh
	q.logger.Info("Worker replaced",
		zap.Int("worker_id", w.id),
		zap.String("reason", reason),
		zap.Int("tasks_processed", fresh.tasksProcessed),
	)
}

func (q *Queue) removeWorker(w *workerState) {
	w.retired = true
	if idx := q.indexOf(w); idx >= 0 {
		q.workers = append(q.workers[:idx], q.workers[idx+1:]...)
	}
}

func (q *Queue) indexOf(w *workerState) int {
	for i, cur := range q.workers {
		if cur == w {
			return i
		}
	}
	return -1
}

// killWorker marks w retired before killing it so its exit is not taken for a crash
func (q *Queue) killWorker(w *workerState) {
	w.retired = true
	if err := w.proc.Kill(); err != nil {
		q.logger.Warn("Failed to kill worker", zap.Int("worker_id", w.id), zap.Error(err))
	}
}

// failRunning synthesizes a failed result for the task bound to w.
// Caller holds q.mu.
func (q *Queue) failRunning(w *workerState, err error) {
	if w.taskID == "" {
		return
	}
	t, ok := q.tasks[w.taskID]
	w.taskID, w.taskType, w.taskStartedAt = "", "", time.Time{}
	if !ok || t.status != StatusRunning {
		return
	}
	q.finish(t, newResult(t, err, nil))
}

func (q *Queue) onWorkerMessage(w *workerState, msg ipc.Message) {
	q.mu.Lock()
	if q.closed || w.retired {
		q.mu.Unlock()
		return
	}
	err := q.handleMessage(w, msg)
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("Internal consistency violation", zap.Int("worker_id", w.id), zap.Error(err))
		q.opts.OnFatal(err)
	}
}

// handleMessage applies one worker message. Caller holds q.mu.
func (q *Queue) handleMessage(w *workerState, msg ipc.Message) error {
	switch m := msg.(type) {
	case ipc.WorkerReady:
		w.ready = true
		q.bootFailures = 0
		q.logger.Info("Worker ready", zap.Int("worker_id", w.id))
		q.publishWorkers()
		q.dispatch()

	case ipc.TaskCompleted:
		var taskErr error
		if m.Result.Failed() {
			if m.Result.Error == nil {
				return errProtocol(m.TaskID, w.id)
			}
			taskErr = errorsx.Deserialize(m.Result.Error)
		}

		t, ok := q.tasks[m.TaskID]
		if !ok || t.status != StatusRunning || w.taskID != m.TaskID {
			q.logger.Warn("Dropping result for a task not running on this worker",
				zap.String("task_id", m.TaskID), zap.Int("worker_id", w.id))
			return nil
		}

		w.taskID, w.taskType, w.taskStartedAt = "", "", time.Time{}
		w.tasksProcessed++
		q.finish(t, newResult(t, taskErr, m.Result.Outputs))
		q.publishWorkers()
		q.dispatch()

	case ipc.TaskMessage:
		event := TaskMessage{TaskID: m.TaskID, WorkerID: w.id, Message: m.Message}
		if t, ok := q.tasks[m.TaskID]; ok {
			event.TaskType = t.taskType
		}
		event.Type, _ = ipc.PayloadType(m.Message)
		q.bus.PublishMessage(event)

	case ipc.Execute:
		q.logger.Warn("Worker sent an execute message", zap.Int("worker_id", w.id))

	default:
		q.logger.Warn("Unhandled worker message", zap.Int("worker_id", w.id), zap.String("type", string(msg.Kind())))
	}
	return nil
}

// onWorkerExit reacts to a process going away on its own
func (q *Queue) onWorkerExit(w *workerState, code int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || w.retired {
		return
	}

	fields := []zap.Field{zap.Int("worker_id", w.id), zap.Int("exit_code", code)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch {
	case !w.ready:
		q.logger.Error("Worker exited before it was ready", fields...)
		q.removeWorker(w)
		q.onBootFailure()
		q.publishWorkers()
		return
	case code != 0:
		q.logger.Error("Worker crashed", fields...)
		q.failRunning(w, ErrWorkerCrashed)
		q.replaceWorker(w, "crash")
	default:
		q.logger.Warn("Worker exited", fields...)
		q.failRunning(w, ErrWorkerCrashed)
		q.removeWorker(w)
	}

	q.publishWorkers()
	q.dispatch()
}


// onBootFailure counts a worker lost before ready. Within the budget the
// pool regrows after a backoff. Once it is spent and no worker is left, the
// pending tasks fail. Caller holds q.mu.
func (q *Queue) onBootFailure() {
	q.bootFailures++
	policy := q.opts.BootRetry

	if q.bootFailures < policy.MaxAttempts {
		if q.respawn == nil {
			delay := policy.Delay(q.bootFailures)
			q.logger.Warn("Respawning worker after boot failure",
				zap.Int("attempt", q.bootFailures),
				zap.Duration("delay", delay),
			)
			q.respawn = time.AfterFunc(delay, q.regrow)
		}
		return
	}
	if len(q.workers) > 0 {
		return
	}

	q.logger.Error("Workers keep failing to boot",
		zap.Int("attempts", q.bootFailures),
		zap.Int("failed_tasks", len(q.pending)),
	)
	q.bootFailures = 0
	q.failPending(ErrWorkerCrashed)
}

// regrow runs the dispatch pass a boot failure deferred
func (q *Queue) regrow() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.respawn = nil
	if q.closed {
		return
	}
	q.dispatch()
}

// failPending fails every task still waiting for a worker.
// The backlog drains one task at a time so quiescence is only reached by
// the last result. Caller holds q.mu.
func (q *Queue) failPending(err error) {
	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending[0] = ""
		q.pending = q.pending[1:]
		if t, ok := q.tasks[id]; ok && t.status == StatusPending {
			q.finish(t, newResult(t, err, nil))
		}
	}
	q.observe()
	if q.idle != nil {
		q.bus.enqueue(q.settle)
	}
}
