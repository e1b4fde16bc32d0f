package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events as JSON on a Redis channel so payout
// workers can subscribe to finalized splits.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

// NewRedisNotifier wraps an existing client.
func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

// redisMessage is the published payload.
type redisMessage struct {
	Event
	Message string `json:"message"`
}

func encodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(redisMessage{Event: ev, Message: FormatMessage(ev)})
}

// Notify publishes ev on the configured channel.
func (n *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", ErrDeliveryFailed, n.channel, err)
	}
	return nil
}
