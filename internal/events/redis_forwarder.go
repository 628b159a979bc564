package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisForwarder republishes lifecycle events on a Redis channel so that
// out-of-process consumers (notification delivery, dashboards) can react.
type RedisForwarder struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisForwarder builds a forwarder for channel.
func NewRedisForwarder(client redis.UniversalClient, channel string) *RedisForwarder {
	return &RedisForwarder{client: client, channel: channel}
}

// Handle is an EventHandler that publishes event as JSON.
func (f *RedisForwarder) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	if err := f.client.Publish(ctx, f.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}
