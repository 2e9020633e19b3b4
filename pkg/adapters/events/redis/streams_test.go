package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestBus(t *testing.T) (*miniredis.Miniredis, *redis.Client, *StreamsEventBus) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	bus := NewStreamsEventBus(client, 1000, zap.NewNop())
	bus.blockTime = 50 * time.Millisecond
	return mr, client, bus
}

func TestStreamsEventBus_Publish(t *testing.T) {
	_, client, bus := setupTestBus(t)
	ctx := context.Background()

	event := domain.Event{
		ID:        "evt-1",
		Type:      domain.EventTypeStepCompleted,
		RunID:     "run-1",
		NodeID:    "0",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, bus.Publish(ctx, domain.TopicStepEvents, event))

	msgs, err := client.XRange(ctx, "scriptflow:events:step.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	decoded, err := decodeMessage(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, domain.EventTypeStepCompleted, decoded.Type)
	assert.Equal(t, "run-1", decoded.RunID)
}

func TestStreamsEventBus_SubscribeReceivesNewEvents(t *testing.T) {
	_, _, bus := setupTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// published before subscribing, must not be delivered
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{ID: "old"}))

	var mu sync.Mutex
	var ids []string
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, e.ID)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{ID: "a"}))
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{ID: "b"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == 2
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": "{"}})
	assert.Error(t, err)
}
