package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventBus_DeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []domain.EventType
	require.NoError(t, bus.Subscribe(ctx, domain.TopicStepEvents, func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
		return nil
	}))

	types := []domain.EventType{domain.EventTypeStepStarted, domain.EventTypeStepCompleted, domain.EventTypeStepStarted}
	for _, typ := range types {
		require.NoError(t, bus.Publish(ctx, domain.TopicStepEvents, domain.Event{Type: typ}))
	}
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{Type: domain.EventTypeRunCompleted}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types, got)
}

func TestInMemoryEventBus_UnsubscribesOnCancel(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, func(context.Context, domain.Event) error { return nil }))
	assert.Equal(t, 1, bus.subscriberCount(domain.TopicRunEvents))

	cancel()
	assert.Eventually(t, func() bool {
		return bus.subscriberCount(domain.TopicRunEvents) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestInMemoryEventBus_Close(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx := context.Background()

	called := false
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, func(context.Context, domain.Event) error {
		called = true
		return nil
	}))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{}))

	assert.False(t, called)
}
