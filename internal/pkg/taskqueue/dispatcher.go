package taskqueue

import (
	"time"

	"mediaq/internal/pkg/ipc"

	"go.uber.org/zap"
)

// selectWorker picks the idle worker with the fewest tasks processed.
// Ties go to the earliest slot.
func selectWorker(workers []*workerState) *workerState {
	var best *workerState
	for _, w := range workers {
		if !w.idle() {
			continue
		}
		if best == nil || w.tasksProcessed < best.tasksProcessed {
			best = w
		}
	}
	return best
}

// workersToSpawn decides how far to grow the pool when nothing is idle.
// Workers still booting are counted against the backlog, so a backlog of
// several tasks behind a single booting worker grows the pool by
// pending-1 rather than pending.
func workersToSpawn(pending, notReady, size, maxWorkers int) int {
	if size >= maxWorkers {
		return 0
	}
	needed := max(0, pending-notReady)
	return min(needed, maxWorkers-size)
}

// dispatch hands pending tasks to idle workers until either runs out.
// Caller holds q.mu.
func (q *Queue) dispatch() {
	for len(q.pending) > 0 && !q.closed {
		if !q.dispatchNext() {
			return
		}
	}
}

// dispatchNext binds the head of the pending queue to a worker. It reports
// false when the task stays queued. Caller holds q.mu.
func (q *Queue) dispatchNext() bool {
	w := selectWorker(q.workers)
	if w == nil {
		if q.respawn != nil {
			return false
		}
		n := workersToSpawn(len(q.pending), q.notReady(), len(q.workers), q.opts.MaxWorkers)
		for i := 0; i < n; i++ {
			if _, err := q.createWorker(q.allocateID(), 0); err != nil {
				q.logger.Error("Failed to create worker", zap.Error(err))
				break
			}
		}
		if n > 0 {
			q.publishWorkers()
		}
		return false
	}

	id := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]

	t, ok := q.tasks[id]
	if !ok || t.status != StatusPending {
		return true
	}

	now := time.Now()
	t.status = StatusRunning
	t.startedAt = now
	t.workerID = w.id
	w.taskID = t.id
	w.taskType = t.taskType
	w.taskStartedAt = now
	q.running++

	t.timer = time.AfterFunc(q.opts.TaskTimeout, func() {
		q.onTimeout(id, w)
	})

	q.logger.Verbose("Task dispatched",
		zap.String("task_id", t.id),
		zap.String("task_type", t.taskType),
		zap.Int("worker_id", w.id),
	)
	q.publishWorkers()

	go q.deliver(w, ipc.Execute{TaskID: t.id, TaskType: t.taskType, Data: t.payload})
	return true
}

// deliver writes an execute message to the worker's pipe without q.mu, so a
// child that stops reading cannot stall the controller. A timeout kills such
// a child, which unblocks the write.
func (q *Queue) deliver(w *workerState, msg ipc.Execute) {
	err := w.proc.Send(msg)
	if err == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || w.retired || w.taskID != msg.TaskID {
		return
	}
	q.logger.Error("Failed to send task to worker",
		zap.String("task_id", msg.TaskID), zap.Int("worker_id", w.id), zap.Error(err))
	q.killWorker(w)
	q.failRunning(w, ErrWorkerCrashed)
	q.replaceWorker(w, "crash")
	q.publishWorkers()
	q.dispatch()
}

// onTimeout fails a task that outlived its timer. A timer that lost the
// race against the task's terminal result finds it gone and does nothing.
func (q *Queue) onTimeout(taskID string, w *workerState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if q.closed || !ok || t.status != StatusRunning || w.retired || w.taskID != taskID {
		return
	}

	q.logger.Warn("Task timed out",
		zap.String("task_id", taskID),
		zap.Int("worker_id", w.id),
		zap.Duration("timeout", q.opts.TaskTimeout),
	)

	q.killWorker(w)
	q.failRunning(w, ErrTaskTimeout)
	q.replaceWorker(w, "timeout")
	q.publishWorkers()
	q.dispatch()
}
