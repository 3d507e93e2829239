// Package presenter renders routed events to whoever is looking: attached
// dashboard UIs connect over a local websocket and receive alert and
// unread-counter frames, and may drive conversation selection and read
// acknowledgement back into the desk.
package presenter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/guestdesk/concierge/internal/model"
	"github.com/guestdesk/concierge/internal/notify"
)

// Controls is the slice of the desk an attached UI may drive. Counter
// mutation stays behind the desk; the hub only relays.
type Controls interface {
	Open(ctx context.Context, conversationID int64) error
	Deselect()
	MarkRead(ctx context.Context, conversationID int64) error
	Unread(conversationID int64) int
	TotalUnread() int
}

type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	controls Controls
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Bind attaches the desk after construction; the hub is created first so
// it can be handed to the desk as its presenter.
func (h *Hub) Bind(c Controls) {
	h.mu.Lock()
	h.controls = c
	h.mu.Unlock()
}

func (h *Hub) getControls() Controls {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.controls
}

func (h *Hub) Run() {
	for {
		select {
		case client, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ui client attached", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ui client detached", "clients", n)

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer; drop it rather than block the loop.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify implements notify.Presenter: every routed event becomes an alert
// frame, and message/conversation events additionally refresh counters on
// the attached UIs.
func (h *Hub) Notify(a notify.Alert) {
	data, err := NewFrame(TypeNotify, NotifyPayload{Channel: a.Channel, Event: a.Event, Data: a.Payload})
	if err != nil {
		return
	}
	h.Broadcast(data)

	switch a.Event {
	case notify.EventNewMessage:
		var ev model.MessageEvent
		if err := json.Unmarshal(a.Payload, &ev); err != nil || ev.ConversationID == 0 {
			return
		}
		h.BroadcastUnread(ev.ConversationID)
	case notify.EventNewConversation:
		var ev model.ConversationEvent
		if err := json.Unmarshal(a.Payload, &ev); err != nil {
			return
		}
		data, err := NewFrame(TypeConversationNew, ConversationPayload{ConversationID: ev.ConversationID})
		if err == nil {
			h.Broadcast(data)
		}
	}
}

func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("presenter broadcast queue full, frame dropped")
	}
}

// BroadcastUnread pushes the current counter state for one conversation.
func (h *Hub) BroadcastUnread(conversationID int64) {
	controls := h.getControls()
	if controls == nil {
		return
	}
	data, err := NewFrame(TypeUnreadUpdate, UnreadPayload{
		ConversationID: conversationID,
		Count:          controls.Unread(conversationID),
		Total:          controls.TotalUnread(),
	})
	if err != nil {
		return
	}
	h.Broadcast(data)
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
}
