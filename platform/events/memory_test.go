package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"estate_crm_backend/platform/logger"

	"github.com/stretchr/testify/assert"
)

type pinged struct{ BaseEvent }

func (pinged) EventName() string { return "test.pinged" }

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	}))
	bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, e Event) error {
		calls.Add(1)
		return errors.New("logged, not returned")
	}))
	bus.Subscribe("test.other", HandlerFunc(func(ctx context.Context, e Event) error {
		t.Fatal("unexpected delivery")
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pinged{NewBaseEvent()})
	cancel()
	bus.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	first := errors.New("first")
	second := errors.New("second")
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { return first }))
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error { return second }))

	err := bus.PublishSync(context.Background(), pinged{NewBaseEvent()})

	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestNewBaseEventIsUniqueAndUTC(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()

	assert.NotEqual(t, a.EventID(), b.EventID())
	assert.Equal(t, time.UTC, a.OccurredAt().Location())
	assert.WithinDuration(t, time.Now(), a.OccurredAt(), time.Second)
}
