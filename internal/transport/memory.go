package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Memory is an in-process transport. It backs the test suite and the
// daemon's demo mode; deliveries are synchronous and in publish order,
// matching the per-channel ordering guarantee of the real transports.
type Memory struct {
	mu     sync.Mutex
	subs   map[string][]*memorySubscription
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySubscription)}
}

func (t *Memory) Subscribe(ctx context.Context, channel string, deliver DeliverFunc) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("transport closed")
	}
	sub := &memorySubscription{transport: t, channel: channel, deliver: deliver}
	t.subs[channel] = append(t.subs[channel], sub)
	return sub, nil
}

func (t *Memory) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	t.mu.Lock()
	subs := make([]*memorySubscription, len(t.subs[channel]))
	copy(subs, t.subs[channel])
	t.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(Delivery{Channel: channel, Event: env.Event, Payload: env.Data})
	}
	return nil
}

func (t *Memory) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subs = make(map[string][]*memorySubscription)
	return nil
}

// SubscriberCount reports the live subscriptions for a channel. Tests use
// it to assert the one-transport-subscription-per-name property.
func (t *Memory) SubscriberCount(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[channel])
}

type memorySubscription struct {
	transport *Memory
	channel   string
	deliver   DeliverFunc
}

func (s *memorySubscription) Unsubscribe() error {
	t := s.transport
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[s.channel]
	for i, sub := range subs {
		if sub == s {
			t.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[s.channel]) == 0 {
		delete(t.subs, s.channel)
	}
	return nil
}
