package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T) (*RedisRelay, *Registry, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := NewRegistry(4, nil)
	return NewRedisRelay(client, "test:notifications", registry, nil), registry, srv
}

func TestRedisRelayPresence(t *testing.T) {
	ctx := context.Background()
	relay, registry, srv := newRelay(t)

	client := registry.Register(ctx, "u1")
	assert.Equal(t, "1", srv.HGet(presenceKey, "u1"))
	second := registry.Register(ctx, "u1")
	assert.Equal(t, "2", srv.HGet(presenceKey, "u1"))
	registry.Unregister(ctx, second)
	assert.Equal(t, "1", srv.HGet(presenceKey, "u1"))

	srv.HSet(presenceKey, "u2", "1")
	assert.True(t, relay.IsOnline(ctx, "u2"))
	assert.False(t, relay.IsOnline(ctx, "u3"))

	registry.Unregister(ctx, client)
	assert.Equal(t, "", srv.HGet(presenceKey, "u1"))
}

func TestRedisRelayDeliversPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay, registry, _ := newRelay(t)
	client := registry.Register(ctx, "u1")

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = relay.Push(ctx, "u1", "notification", map[string]string{"id": "n1"})
		select {
		case event := <-client.Events():
			assert.Equal(t, "notification", event.Name)
			raw, ok := event.Payload.(json.RawMessage)
			require.True(t, ok)
			assert.JSONEq(t, `{"id":"n1"}`, string(raw))
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
