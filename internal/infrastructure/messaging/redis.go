package messaging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "catalog.events"

// Redis relays over a pub/sub channel. Messages published while an instance is
// not subscribed are lost, which matches the at-most-once feed.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	return client, nil
}

func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, body []byte) error {
	return r.client.Publish(ctx, r.channel, body).Err()
}

func (r *Redis) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrBusClosed
			}
			handler(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
