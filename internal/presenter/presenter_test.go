package presenter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestdesk/concierge/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeControls struct {
	unread map[int64]int
	total  int
}

func (f *fakeControls) Open(ctx context.Context, conversationID int64) error { return nil }
func (f *fakeControls) Deselect()                                            {}
func (f *fakeControls) MarkRead(ctx context.Context, conversationID int64) error {
	return nil
}
func (f *fakeControls) Unread(conversationID int64) int { return f.unread[conversationID] }
func (f *fakeControls) TotalUnread() int                { return f.total }

func drainFrames(t *testing.T, h *Hub) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case data := <-h.broadcast:
			var f Frame
			require.NoError(t, json.Unmarshal(data, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	data, err := NewFrame(TypeUnreadUpdate, UnreadPayload{ConversationID: 7, Count: 2, Total: 5})
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, TypeUnreadUpdate, frame.Type)

	var payload UnreadPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, int64(7), payload.ConversationID)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, 5, payload.Total)
}

func TestNotifyMessageEventEmitsAlertAndCounter(t *testing.T) {
	h := NewHub(testLogger())
	h.Bind(&fakeControls{unread: map[int64]int{7: 3}, total: 4})

	h.Notify(notify.Alert{
		Channel: "hotel-42-conversation-7-chat",
		Event:   notify.EventNewMessage,
		Payload: json.RawMessage(`{"conversation":7,"message":"hi"}`),
	})

	frames := drainFrames(t, h)
	require.Len(t, frames, 2)
	assert.Equal(t, TypeNotify, frames[0].Type)
	assert.Equal(t, TypeUnreadUpdate, frames[1].Type)

	var unread UnreadPayload
	require.NoError(t, json.Unmarshal(frames[1].Payload, &unread))
	assert.Equal(t, 3, unread.Count)
	assert.Equal(t, 4, unread.Total)
}

func TestNotifyNewConversation(t *testing.T) {
	h := NewHub(testLogger())
	h.Bind(&fakeControls{unread: map[int64]int{}})

	h.Notify(notify.Alert{
		Channel: "hotel-42-conversations",
		Event:   notify.EventNewConversation,
		Payload: json.RawMessage(`{"conversation":11,"room":"117"}`),
	})

	frames := drainFrames(t, h)
	require.Len(t, frames, 2)
	assert.Equal(t, TypeNotify, frames[0].Type)
	assert.Equal(t, TypeConversationNew, frames[1].Type)
}

func TestNotifyWithoutControlsStillAlerts(t *testing.T) {
	h := NewHub(testLogger())

	h.Notify(notify.Alert{
		Channel: "hotel-42-conversation-7-chat",
		Event:   notify.EventNewMessage,
		Payload: json.RawMessage(`{"conversation":7,"message":"hi"}`),
	})

	frames := drainFrames(t, h)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeNotify, frames[0].Type)
}
