package taskqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"mediaq/internal/pkg/logger"

	"go.uber.org/zap"
)

// CompleteListener receives every terminal task result
type CompleteListener func(ctx context.Context, result Result) error

// MessageListener receives intermediate task messages
type MessageListener func(ctx context.Context, msg TaskMessage) error

// WorkerStateListener receives the worker table after every pool change
type WorkerStateListener func(ctx context.Context, workers []WorkerInfo) error

// Subscription is the handle returned by listener registration
type Subscription struct {
	once   sync.Once
	remove func()
}

// Unsubscribe stops further deliveries to the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.remove)
}

type listener[E any] struct {
	id     uint64
	match  func(E) bool
	invoke func(context.Context, E) error
}

type listeners[E any] struct {
	entries []listener[E]
}

func (l *listeners[E]) add(entry listener[E]) {
	l.entries = append(l.entries, entry)
}

// remove keeps the remaining entries in registration order
func (l *listeners[E]) remove(id uint64) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[E]) snapshot() []listener[E] {
	out := make([]listener[E], len(l.entries))
	copy(out, l.entries)
	return out
}

// Bus delivers queue events to listeners. Deliveries run one at a time on a
// single goroutine, in publish order, each event reaching its listeners in
// registration order. Publishing never blocks, so listeners may call back
// into the queue.
type Bus struct {
	logger *logger.Logger

	mu        sync.Mutex
	nextID    uint64
	completes listeners[Result]
	messages  listeners[TaskMessage]
	workers   listeners[[]WorkerInfo]
	backlog   []func(context.Context)
	closed    bool

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBus creates a bus and starts its delivery goroutine
func NewBus(log *logger.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger: log.With(zap.String("component", "bus")),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.run()
	return b
}

// OnTaskComplete registers a listener for terminal results
func (b *Bus) OnTaskComplete(fn CompleteListener) *Subscription {
	return subscribe(b, &b.completes, nil, fn)
}

// OnTaskMessage registers a listener for messages whose payload type equals
// msgType. An empty msgType matches only messages without a type.
func (b *Bus) OnTaskMessage(msgType string, fn MessageListener) *Subscription {
	return subscribe(b, &b.messages, func(m TaskMessage) bool { return m.Type == msgType }, fn)
}

// OnAnyTaskMessage registers a listener for every task message
func (b *Bus) OnAnyTaskMessage(fn MessageListener) *Subscription {
	return subscribe(b, &b.messages, nil, fn)
}

// OnWorkerStateChange registers a listener for worker table snapshots
func (b *Bus) OnWorkerStateChange(fn WorkerStateListener) *Subscription {
	return subscribe(b, &b.workers, nil, fn)
}

func subscribe[E any, F ~func(context.Context, E) error](b *Bus, list *listeners[E], match func(E) bool, fn F) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	list.add(listener[E]{id: id, match: match, invoke: fn})

	return &Subscription{remove: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list.remove(id)
	}}
}

// PublishComplete queues a terminal result for delivery
func (b *Bus) PublishComplete(result Result) {
	publish(b, &b.completes, "task_complete", result)
}

// PublishMessage queues a task message for delivery
func (b *Bus) PublishMessage(msg TaskMessage) {
	publish(b, &b.messages, "task_message", msg)
}

// PublishWorkerState queues a worker table snapshot for delivery
func (b *Bus) PublishWorkerState(workers []WorkerInfo) {
	publish(b, &b.workers, "worker_state", workers)
}

func publish[E any](b *Bus, list *listeners[E], event string, payload E) {
	b.enqueue(func(ctx context.Context) {
		b.mu.Lock()
		subs := list.snapshot()
		b.mu.Unlock()

		for _, sub := range subs {
			if sub.match != nil && !sub.match(payload) {
				continue
			}
			b.invoke(ctx, event, func(ctx context.Context) error {
				return sub.invoke(ctx, payload)
			})
		}
	})
}

// enqueue schedules fn after every delivery queued before it
func (b *Bus) enqueue(fn func(context.Context)) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.backlog = append(b.backlog, fn)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		b.mu.Lock()
		if len(b.backlog) == 0 {
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			<-b.wake
			continue
		}
		next := b.backlog[0]
		b.backlog[0] = nil
		b.backlog = b.backlog[1:]
		b.mu.Unlock()

		next(b.ctx)
	}
}

// invoke runs one listener, containing its errors and panics
func (b *Bus) invoke(ctx context.Context, event string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Exception("Listener panicked", fmt.Errorf("panic in listener: %v", r), string(debug.Stack()),
				zap.String("event", event))
		}
	}()

	if err := fn(ctx); err != nil {
		b.logger.Error("Listener failed", zap.String("event", event), zap.Error(err))
	}
}

// Close stops accepting events, waits for queued deliveries to finish and
// drops every subscription. It must not be called from a listener.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()

	var err error
	select {
	case <-b.done:
	case <-ctx.Done():
		err = fmt.Errorf("taskqueue: waiting for listeners: %w", ctx.Err())
	}
	b.cancel()

	b.mu.Lock()
	b.completes = listeners[Result]{}
	b.messages = listeners[TaskMessage]{}
	b.workers = listeners[[]WorkerInfo]{}
	b.mu.Unlock()

	return err
}
