package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChannel is a GuaranteedChannel backed by Redis pub/sub, for
// deployments that want tier-3 escalations published to a channel outside
// the cortexd process. Pub/sub does not store messages: a subscriber that
// is not connected when Deliver publishes does not receive them.
type RedisChannel struct {
	client *redis.Client
	topic  string
}

// NewRedisChannel constructs a RedisChannel publishing to topic on the
// given Redis client. The caller owns the client's lifecycle.
func NewRedisChannel(client *redis.Client, topic string) *RedisChannel {
	return &RedisChannel{client: client, topic: topic}
}

// Deliver publishes msg to the configured Redis topic.
func (r *RedisChannel) Deliver(ctx context.Context, msg Message) error {
	payload := fmt.Sprintf(`{"subject":%q,"body":%q,"priority":%q,"thread_id":%q}`,
		msg.Subject, msg.Body, msg.Priority, msg.ThreadID)
	return r.client.Publish(ctx, r.topic, payload).Err()
}
