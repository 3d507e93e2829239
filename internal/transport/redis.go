package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis delivers push events over Redis pub/sub. Channel names are used as
// Redis channel names verbatim; the server publishes the same names, so no
// prefixing is allowed here.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedis(redisURL string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Redis{client: client, logger: logger}, nil
}

func (t *Redis) Subscribe(ctx context.Context, channel string, deliver DeliverFunc) (Subscription, error) {
	pubsub := t.client.Subscribe(ctx, channel)

	// Receive blocks until Redis confirms the subscription; this is the
	// transport-level acknowledgement the registry's state machine waits on.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.logger.Warn("malformed push payload", "channel", msg.Channel, "error", err)
				continue
			}
			deliver(Delivery{Channel: msg.Channel, Event: env.Event, Payload: env.Data})
		}
	}()

	return &redisSubscription{pubsub: pubsub}, nil
}

func (t *Redis) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, channel, data).Err()
}

func (t *Redis) Close() error {
	return t.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

// Unsubscribe closes the pubsub; the delivery goroutine exits when its
// channel drains.
func (s *redisSubscription) Unsubscribe() error {
	return s.pubsub.Close()
}
