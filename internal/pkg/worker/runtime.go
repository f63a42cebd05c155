package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"mediaq/internal/pkg/ipc"
	"mediaq/internal/pkg/logger"

	"go.uber.org/zap"
)

// ErrNoHandler is returned for a task type nothing is registered for
var ErrNoHandler = errors.New("no handler registered for task type")

// Runtime runs inside a worker process. It announces readiness, then
// executes one task at a time as execute messages arrive, reporting exactly
// one terminal result per task.
type Runtime struct {
	registry    *Registry
	middlewares []Middleware
	options     Options
	logger      *logger.Logger
	mu          sync.RWMutex
}

// NewRuntime creates a runtime with the default middlewares
func NewRuntime(opts Options, log *logger.Logger) *Runtime {
	log = log.With(zap.Int("worker_id", opts.WorkerID))
	r := &Runtime{
		registry: NewRegistry(),
		options:  opts,
		logger:   log,
	}
	r.Use(TracingMiddleware(), RecoveryMiddleware(log), LoggingMiddleware(log))
	return r
}

// Register registers a handler for a task type
func (r *Runtime) Register(taskType string, handler Handler) {
	r.registry.Register(taskType, handler)
	r.logger.Verbose("Handler registered", zap.String("task_type", taskType))
}

// Use adds middlewares to the runtime
func (r *Runtime) Use(mws ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mws...)
}

// Serve speaks the worker side of the protocol over in/out until in is
// closed. It returns nil when the controller closes the channel.
func (r *Runtime) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := ipc.NewEncoder(out)
	dec := ipc.NewDecoder(in)

	if err := enc.Encode(ipc.WorkerReady{}); err != nil {
		return err
	}
	r.logger.Info("Worker ready", zap.Strings("task_types", r.registry.Types()))

	for {
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			r.logger.Info("Controller closed the channel, exiting")
			return nil
		}
		if err != nil {
			if ipc.IsRecoverable(err) {
				r.logger.Warn("Ignoring malformed message", zap.Error(err))
				continue
			}
			return err
		}

		switch m := msg.(type) {
		case ipc.Execute:
			result := r.execute(ctx, m, enc)
			if err := enc.Encode(ipc.TaskCompleted{TaskID: m.TaskID, Result: result}); err != nil {
				return err
			}
		default:
			r.logger.Warn("Unexpected message from controller", zap.String("type", string(msg.Kind())))
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// execute runs a single task and converts its outcome into a wire result
func (r *Runtime) execute(ctx context.Context, m ipc.Execute, enc *ipc.Encoder) ipc.Result {
	task := &Task{
		ID:       m.TaskID,
		Type:     m.TaskType,
		Payload:  m.Data,
		WorkerID: r.options.WorkerID,
		Session:  r.options.Session,
	}
	task.send = func(raw json.RawMessage) error {
		return enc.Encode(ipc.TaskMessage{TaskID: task.ID, Message: raw})
	}
	defer task.finish()

	handler, err := r.registry.Get(m.TaskType)
	if err != nil {
		r.logger.Warn("Rejecting task", zap.String("task_id", m.TaskID), zap.Error(err))
		return ipc.Failure(err)
	}

	r.mu.RLock()
	if len(r.middlewares) > 0 {
		handler = Chain(r.middlewares...)(handler)
	}
	r.mu.RUnlock()

	out, err := handler.Process(ctx, task)
	if err != nil {
		return ipc.Failure(err)
	}

	if raw, ok := out.(json.RawMessage); ok {
		return ipc.Succeeded(raw)
	}
	if out == nil {
		return ipc.Succeeded(nil)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return ipc.Failure(fmt.Errorf("failed to encode outputs: %w", err))
	}
	return ipc.Succeeded(raw)
}
