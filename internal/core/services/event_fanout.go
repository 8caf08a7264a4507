package services

import (
	"context"
	"sync"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/ports"

	"go.uber.org/zap"
)

type queuedEvent struct {
	ctx   context.Context
	event domain.ShareEvent
}

// EventFanout delivers share events to every registered sink from a single
// goroutine, so slow sinks never hold up the controller. Events are dropped
// when the queue is full.
type EventFanout struct {
	mu    sync.RWMutex
	sinks []ports.ShareEventSink

	queue  chan queuedEvent
	done   chan struct{}
	closed sync.Once

	logger *zap.SugaredLogger
}

func NewEventFanout(buffer int, logger *zap.SugaredLogger, sinks ...ports.ShareEventSink) *EventFanout {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventFanout{
		sinks:  sinks,
		queue:  make(chan queuedEvent, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// AddSink registers another destination. Safe to call while running.
func (f *EventFanout) AddSink(sink ports.ShareEventSink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

func (f *EventFanout) Emit(ctx context.Context, event domain.ShareEvent) {
	select {
	case <-f.done:
		return
	default:
	}

	select {
	case f.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		f.logger.Warnw("event queue full, dropping event", "type", event.Type, "share_id", event.ShareID)
	}
}

// Run delivers queued events until ctx is cancelled or Close is called,
// then flushes whatever is still queued.
func (f *EventFanout) Run(ctx context.Context) {
	for {
		select {
		case q := <-f.queue:
			f.deliver(q)
		case <-ctx.Done():
			f.flush()
			return
		case <-f.done:
			f.flush()
			return
		}
	}
}

func (f *EventFanout) Close() {
	f.closed.Do(func() { close(f.done) })
}

func (f *EventFanout) flush() {
	for {
		select {
		case q := <-f.queue:
			f.deliver(q)
		default:
			return
		}
	}
}

func (f *EventFanout) deliver(q queuedEvent) {
	f.mu.RLock()
	sinks := make([]ports.ShareEventSink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, sink := range sinks {
		sink.Emit(q.ctx, q.event)
	}
}
