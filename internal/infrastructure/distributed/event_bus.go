package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope wraps a share event with the instance that produced it.
type Envelope struct {
	InstanceID string            `json:"instance_id"`
	SentAt     time.Time         `json:"sent_at"`
	Event      domain.ShareEvent `json:"event"`
}

// EventBus relays share events between sharecast instances over redis pub/sub.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	breaker    *circuitbreaker.CircuitBreaker
}

func NewEventBus(client *redis.Client, instanceID, channel string, logger *zap.SugaredLogger) *EventBus {
	if channel == "" {
		channel = "sharecast:events"
	}
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("event relay breaker changed state", "from", from, "to", to)
	})
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
		breaker:    breaker,
	}
}

// Publish publishes an event to the event bus
func (eb *EventBus) Publish(ctx context.Context, event domain.ShareEvent) error {
	data, err := eb.encode(event)
	if err != nil {
		return err
	}
	err = eb.breaker.Execute(ctx, func() error {
		return eb.client.Publish(ctx, eb.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"share_id", event.ShareID,
	)
	return nil
}

// Emit publishes the event and logs failures. Events that cannot reach redis
// are not retried, and while the breaker is open they are dropped quietly.
func (eb *EventBus) Emit(ctx context.Context, event domain.ShareEvent) {
	err := eb.Publish(ctx, event)
	switch {
	case err == nil:
	case errors.Is(err, circuitbreaker.ErrOpen):
		eb.logger.Debugw("event relay suspended, dropping share event", "type", event.Type)
	default:
		eb.logger.Warnw("failed to relay share event", "type", event.Type, "error", err)
	}
}

// Subscribe calls handler for every event published by other instances until
// ctx is done.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(domain.ShareEvent) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eb.channel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			eb.dispatch(msg.Payload, handler)
		}
	}
}

func (eb *EventBus) encode(event domain.ShareEvent) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		InstanceID: eb.instanceID,
		SentAt:     time.Now(),
		Event:      event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// dispatch decodes one pub/sub payload and hands it to handler unless it came
// from this instance.
func (eb *EventBus) dispatch(payload string, handler func(domain.ShareEvent) error) bool {
	var envelope Envelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		eb.logger.Warnw("failed to unmarshal event",
			"error", err,
			"payload", payload,
		)
		return false
	}
	if envelope.InstanceID == eb.instanceID {
		return false
	}

	event := envelope.Event
	event.Origin = envelope.InstanceID
	if err := handler(event); err != nil {
		eb.logger.Warnw("error handling event",
			"type", event.Type,
			"origin", event.Origin,
			"error", err,
		)
	}
	return true
}

// Close closes the event bus
func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
