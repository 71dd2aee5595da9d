package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/pkg/redis"
)

// ReportEvent is a change notification for the reports table.
type ReportEvent struct {
	Action   string       `json:"action"` // INSERT, UPDATE, DELETE
	ReportID string       `json:"report_id"`
	Status   model.Status `json:"status,omitempty"`
}

// Events fans report change notifications out to realtime subscribers.
// With Redis available, events published by any instance reach every
// instance's subscribers; without it the hub is process-local.
type Events struct {
	mu     sync.Mutex
	subs   map[chan ReportEvent]struct{}
	cancel context.CancelFunc
}

func NewEvents() *Events {
	e := &Events{subs: make(map[chan ReportEvent]struct{})}

	if redis.Available() {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.consumeRedis(ctx)
	}

	return e
}

// Publish broadcasts an event. Delivery is best-effort: subscribers that
// cannot keep up are skipped, they refetch on the next event anyway.
func (e *Events) Publish(ctx context.Context, ev ReportEvent) {
	if redis.Available() {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := redis.PublishReportEvent(ctx, payload); err != nil {
				zap.L().Warn("Failed to publish report event to redis", zap.Error(err))
				e.broadcast(ev)
			}
			return
		}
	}
	e.broadcast(ev)
}

func (e *Events) broadcast(ev ReportEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a realtime subscriber. The returned cancel function
// must be called when the subscriber goes away.
func (e *Events) Subscribe() (<-chan ReportEvent, func()) {
	ch := make(chan ReportEvent, 16)

	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

func (e *Events) consumeRedis(ctx context.Context) {
	pubsub := redis.SubscribeReportEvents(ctx)
	if pubsub == nil {
		return
	}
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var ev ReportEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				zap.L().Warn("Dropping malformed report event", zap.Error(err))
				continue
			}
			e.broadcast(ev)
		}
	}
}

// Close stops the redis consumer, if one is running.
func (e *Events) Close() {
	if e.cancel != nil {
		e.cancel()
	}
}
