// Package transport abstracts the push-messaging service as an opaque
// publish/subscribe collaborator addressed by channel-name strings. The
// registry owns subscription lifecycles; implementations here only move
// named events with JSON payloads and report their own connection errors.
package transport

import (
	"context"
	"encoding/json"
)

// Delivery is one inbound event. Arrival order is guaranteed per channel,
// never across channels or relative to REST responses.
type Delivery struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

type DeliverFunc func(d Delivery)

// Subscription is a live transport binding for one channel. Unsubscribe
// releases it; errors are connection-level and safe to log and ignore.
type Subscription interface {
	Unsubscribe() error
}

// Transport is the pluggable push service. Subscribe returns only after the
// service has acknowledged the subscription, so a nil error means the
// channel is live. Reconnect policy is owned by the implementation.
type Transport interface {
	Subscribe(ctx context.Context, channel string, deliver DeliverFunc) (Subscription, error)
	Publish(ctx context.Context, channel, event string, payload any) error
	Close() error
}

// envelope is the wire format shared by all transports: a named event with
// an opaque data document.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(envelope{Event: event, Data: data})
}
