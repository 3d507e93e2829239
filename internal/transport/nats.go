package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 5 * time.Second

// NATS delivers push events over NATS subjects, one subject per channel
// name. Reconnects are handled by the client library.
type NATS struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNATS(url string, maxReconnects int, reconnectWait time.Duration, logger *slog.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{conn: conn, logger: logger}, nil
}

func (t *NATS) Subscribe(ctx context.Context, channel string, deliver DeliverFunc) (Subscription, error) {
	sub, err := t.conn.Subscribe(channel, func(msg *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.logger.Warn("malformed push payload", "channel", msg.Subject, "error", err)
			return
		}
		deliver(Delivery{Channel: msg.Subject, Event: env.Event, Payload: env.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}

	// Flush round-trips to the server so the subscription is acknowledged
	// before the registry reports the channel as live.
	if err := t.conn.FlushTimeout(natsFlushTimeout); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}

	return &natsSubscription{sub: sub}, nil
}

func (t *NATS) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	return t.conn.Publish(channel, data)
}

func (t *NATS) Close() error {
	t.conn.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
