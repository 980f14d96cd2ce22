package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presenceKey = "realtime:presence"

type relayMessage struct {
	UserID  string          `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans push events out to every API instance over Redis pub/sub and keeps a
// cluster-wide presence count per user.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *Registry
	logger  *zap.Logger
}

// NewRedisRelay wires a relay to the local registry and installs itself as the presence hook.
func NewRedisRelay(client *redis.Client, channel string, local *Registry, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	relay := &RedisRelay{client: client, channel: channel, local: local, logger: logger}
	local.SetPresence(relay)
	return relay
}

// UserOnline increments the user's connection count across instances.
func (r *RedisRelay) UserOnline(ctx context.Context, userID string) error {
	return r.client.HIncrBy(ctx, presenceKey, userID, 1).Err()
}

// UserOffline decrements the count and clears the field once it reaches zero.
func (r *RedisRelay) UserOffline(ctx context.Context, userID string) error {
	left, err := r.client.HIncrBy(ctx, presenceKey, userID, -1).Result()
	if err != nil {
		return err
	}
	if left <= 0 {
		return r.client.HDel(ctx, presenceKey, userID).Err()
	}
	return nil
}

// IsOnline checks the local registry first, then the shared presence hash.
func (r *RedisRelay) IsOnline(ctx context.Context, userID string) bool {
	if r.local.IsOnline(ctx, userID) {
		return true
	}
	count, err := r.client.HGet(ctx, presenceKey, userID).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Sugar().Warnw("presence lookup failed", "user_id", userID, "error", err)
		}
		return false
	}
	return count > 0
}

// Push publishes the event; the instance holding the user's stream delivers it.
func (r *RedisRelay) Push(ctx context.Context, userID, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := json.Marshal(relayMessage{UserID: userID, Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Run delivers relayed events to local streams until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Sugar().Infow("realtime relay subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, raw string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Sugar().Warnw("invalid relay message", "error", err)
		return
	}
	err := r.local.Push(ctx, msg.UserID, msg.Event, msg.Payload)
	if err != nil && !errors.Is(err, ErrRecipientOffline) {
		r.logger.Sugar().Warnw("relay delivery failed", "user_id", msg.UserID, "event", msg.Event, "error", err)
	}
}
