package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyTransport fails the first n subscribe attempts, then delegates to a
// memory transport.
type flakyTransport struct {
	*transport.Memory
	failures int
}

func (t *flakyTransport) Subscribe(ctx context.Context, channel string, deliver transport.DeliverFunc) (transport.Subscription, error) {
	if t.failures > 0 {
		t.failures--
		return nil, errors.New("connection refused")
	}
	return t.Memory.Subscribe(ctx, channel, deliver)
}

func TestSubscribeTwiceMergesHandlers(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	var gotA, gotB []string
	_, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": func(p json.RawMessage) { gotA = append(gotA, string(p)) },
	})
	require.NoError(t, err)

	_, err = reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"typing": func(p json.RawMessage) { gotB = append(gotB, string(p)) },
	})
	require.NoError(t, err)

	// Exactly one transport subscription regardless of subscribe calls.
	assert.Equal(t, 1, tr.SubscriberCount("hotel-42-conversation-7-chat"))

	require.NoError(t, tr.Publish(ctx, "hotel-42-conversation-7-chat", "new-message", map[string]string{"m": "hi"}))
	require.NoError(t, tr.Publish(ctx, "hotel-42-conversation-7-chat", "typing", map[string]string{"m": "..."}))

	assert.Len(t, gotA, 1)
	assert.Len(t, gotB, 1)
}

func TestSubscribeSameEventLaterHandlerWins(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	var first, second int
	_, err := reg.Subscribe(ctx, "hotel-42-conversations", map[string]HandlerFunc{
		"new-conversation": func(json.RawMessage) { first++ },
	})
	require.NoError(t, err)
	_, err = reg.Subscribe(ctx, "hotel-42-conversations", map[string]HandlerFunc{
		"new-conversation": func(json.RawMessage) { second++ },
	})
	require.NoError(t, err)

	require.NoError(t, tr.Publish(ctx, "hotel-42-conversations", "new-conversation", nil))

	assert.Equal(t, 0, first, "replaced handler must not fire")
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, tr.SubscriberCount("hotel-42-conversations"))
}

func TestUnsubscribeIdempotent(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	h, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": func(json.RawMessage) {},
	})
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, h.State())

	reg.Unsubscribe("hotel-42-conversation-7-chat")
	reg.Unsubscribe("hotel-42-conversation-7-chat")
	reg.Unsubscribe("never-subscribed")

	assert.Equal(t, StateUnsubscribed, h.State())
	assert.Empty(t, reg.Channels())
}

func TestUnsubscribeStopsHandlersImmediately(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	calls := 0
	_, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": func(json.RawMessage) { calls++ },
	})
	require.NoError(t, err)

	reg.Unsubscribe("hotel-42-conversation-7-chat")

	// Handler removal is synchronous: even if the transport still delivers
	// while its teardown is in flight, nothing fires.
	assert.False(t, reg.Dispatch("hotel-42-conversation-7-chat", "new-message", nil))
	assert.Equal(t, 0, calls)
}

func TestSubscribeFailureLeavesRegistryUsable(t *testing.T) {
	tr := &flakyTransport{Memory: transport.NewMemory(), failures: 1}
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	_, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": func(json.RawMessage) {},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrTransportSubscribe))
	assert.Empty(t, reg.Channels())

	// No silent retry happened; the next explicit subscribe starts fresh.
	h, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": func(json.RawMessage) {},
	})
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, h.State())
}

func TestRebindWithoutResubscribe(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	selected := int64(0)
	handler := func(json.RawMessage) { selected = 1 }

	h, err := reg.Subscribe(ctx, "hotel-42-conversation-7-chat", map[string]HandlerFunc{
		"new-message": handler,
	})
	require.NoError(t, err)

	// State changed; the call site refreshes the binding the way a view
	// does on re-render.
	h.Bind("new-message", func(json.RawMessage) { selected = 2 })

	require.NoError(t, tr.Publish(ctx, "hotel-42-conversation-7-chat", "new-message", nil))

	assert.Equal(t, int64(2), selected, "delivery must use the current handler")
	assert.Equal(t, 1, tr.SubscriberCount("hotel-42-conversation-7-chat"), "rebinding must not resubscribe")
}

func TestUnsubscribeAll(t *testing.T) {
	tr := transport.NewMemory()
	reg := NewRegistry(tr, testLogger())
	ctx := context.Background()

	for _, name := range []string{"hotel-42-conversation-1-chat", "hotel-42-conversation-2-chat", "hotel-42-conversations"} {
		_, err := reg.Subscribe(ctx, name, map[string]HandlerFunc{"new-message": func(json.RawMessage) {}})
		require.NoError(t, err)
	}
	assert.Len(t, reg.Channels(), 3)

	reg.UnsubscribeAll()

	assert.Empty(t, reg.Channels())
	assert.Equal(t, 0, tr.SubscriberCount("hotel-42-conversation-1-chat"))
	assert.Equal(t, 0, tr.SubscriberCount("hotel-42-conversation-2-chat"))
	assert.Equal(t, 0, tr.SubscriberCount("hotel-42-conversations"))
}

func TestChannelStateString(t *testing.T) {
	assert.Equal(t, "unsubscribed", StateUnsubscribed.String())
	assert.Equal(t, "subscribing", StateSubscribing.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "unsubscribing", StateUnsubscribing.String())
}
