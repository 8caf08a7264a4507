package distributed

import (
	"context"
	"errors"
	"testing"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventBus_DispatchSkipsOwnEvents(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	local := NewEventBus(nil, "instance-a", "", logger)
	remote := NewEventBus(nil, "instance-b", "", logger)

	event := domain.ShareEvent{
		Type:      domain.EventStateChanged,
		ShareID:   "share-1",
		State:     "sharing",
		Timestamp: time.Now(),
	}
	data, err := local.encode(event)
	require.NoError(t, err)

	var received []domain.ShareEvent
	handler := func(ev domain.ShareEvent) error {
		received = append(received, ev)
		return nil
	}

	assert.False(t, local.dispatch(string(data), handler))
	assert.True(t, remote.dispatch(string(data), handler))

	require.Len(t, received, 1)
	assert.Equal(t, domain.ShareID("share-1"), received[0].ShareID)
	assert.Equal(t, "sharing", received[0].State)
	assert.Equal(t, "instance-a", received[0].Origin)
}

func TestEventBus_DispatchIgnoresGarbage(t *testing.T) {
	bus := NewEventBus(nil, "instance-a", "", zaptest.NewLogger(t).Sugar())

	called := false
	ok := bus.dispatch("{not json", func(domain.ShareEvent) error {
		called = true
		return nil
	})

	assert.False(t, ok)
	assert.False(t, called)
}

func TestEventBus_HandlerErrorsAreLogged(t *testing.T) {
	sender := NewEventBus(nil, "instance-b", "", zaptest.NewLogger(t).Sugar())
	bus := NewEventBus(nil, "instance-a", "", zaptest.NewLogger(t).Sugar())

	data, err := sender.encode(domain.ShareEvent{Type: domain.EventShareError})
	require.NoError(t, err)

	assert.True(t, bus.dispatch(string(data), func(domain.ShareEvent) error {
		return errors.New("sink closed")
	}))
}

func TestNewEventBus_DefaultChannel(t *testing.T) {
	bus := NewEventBus(nil, "instance-a", "", zaptest.NewLogger(t).Sugar())
	assert.Equal(t, "sharecast:events", bus.channel)
}

func TestEventBus_PublishOpensBreakerWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	bus := NewEventBus(client, "instance-a", "", zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	event := domain.ShareEvent{Type: domain.EventStateChanged, State: "idle"}

	threshold := circuitbreaker.DefaultConfig().FailureThreshold
	for i := 0; i < threshold; i++ {
		err := bus.Publish(ctx, event)
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}

	assert.ErrorIs(t, bus.Publish(ctx, event), circuitbreaker.ErrOpen)
	// Emit swallows the rejection
	bus.Emit(ctx, event)
}
