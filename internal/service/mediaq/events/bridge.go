// Package events forwards queue notifications to Redis pub/sub so other
// local processes can follow task progress.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// Source is the notification side of the queue
type Source interface {
	OnTaskComplete(fn taskqueue.CompleteListener) *taskqueue.Subscription
	OnAnyTaskMessage(fn taskqueue.MessageListener) *taskqueue.Subscription
	OnWorkerStateChange(fn taskqueue.WorkerStateListener) *taskqueue.Subscription
}

// Publisher is the subset of the redis client the bridge needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Envelope is the JSON document published on every channel
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Bridge republishes queue events on <prefix>:complete, <prefix>:message
// and <prefix>:workers
type Bridge struct {
	rdb    Publisher
	prefix string
	logger *logger.Logger
	subs   []*taskqueue.Subscription
}

// NewBridge creates a bridge publishing under prefix
func NewBridge(rdb Publisher, prefix string, log *logger.Logger) *Bridge {
	return &Bridge{rdb: rdb, prefix: prefix, logger: log}
}

// Channel returns the full channel name for an event
func (b *Bridge) Channel(event string) string {
	return b.prefix + ":" + event
}

// Attach subscribes the bridge to src
func (b *Bridge) Attach(src Source) {
	b.subs = append(b.subs,
		src.OnTaskComplete(func(ctx context.Context, r taskqueue.Result) error {
			return b.publish(ctx, "complete", r)
		}),
		src.OnAnyTaskMessage(func(ctx context.Context, m taskqueue.TaskMessage) error {
			return b.publish(ctx, "message", m)
		}),
		src.OnWorkerStateChange(func(ctx context.Context, w []taskqueue.WorkerInfo) error {
			return b.publish(ctx, "workers", w)
		}),
	)
	b.logger.Info("Event bridge attached", zap.String("prefix", b.prefix))
}

// Detach drops every subscription made by Attach
func (b *Bridge) Detach() {
	for _, s := range b.subs {
		s.Unsubscribe()
	}
	b.subs = nil
}

func (b *Bridge) publish(ctx context.Context, event string, data any) error {
	payload, err := json.Marshal(Envelope{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	channel := b.Channel(event)
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
