// Package desk wires the staff-facing side together: the REST baseline,
// the per-conversation and per-hotel channel subscriptions, read actions,
// and the polling fallback that reconciles counters with the server.
package desk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/guestdesk/concierge/internal/model"
	"github.com/guestdesk/concierge/internal/notify"
	"github.com/guestdesk/concierge/internal/transport"
)

// API is the slice of the conversation REST API the desk consumes.
type API interface {
	ListConversations(ctx context.Context, hotelID string) ([]model.Conversation, error)
	UnreadSummary(ctx context.Context, hotelID string) ([]model.UnreadSummary, error)
	MarkConversationRead(ctx context.Context, conversationID int64) error
}

// Desk owns the registry, router and aggregator for one hotel's front
// desk. It is created per dashboard context and disposed with Stop.
type Desk struct {
	hotelID  string
	api      API
	registry *notify.Registry
	router   *notify.Router
	unread   *notify.Aggregator
	logger   *slog.Logger
}

func New(hotelID string, api API, tr transport.Transport, presenter notify.Presenter, logger *slog.Logger) *Desk {
	registry := notify.NewRegistry(tr, logger)
	router := notify.NewRouter(registry, presenter, logger)
	registry.Use(router.Route)

	return &Desk{
		hotelID:  hotelID,
		api:      api,
		registry: registry,
		router:   router,
		unread:   notify.NewAggregator(api, logger),
		logger:   logger,
	}
}

// Start fetches the conversation baseline, seeds the aggregator, and opens
// the per-conversation channels plus the hotel broadcast channel. A failed
// channel subscription degrades that conversation to polling; only a
// failed baseline fetch aborts.
func (d *Desk) Start(ctx context.Context) error {
	conversations, err := d.api.ListConversations(ctx, d.hotelID)
	if err != nil {
		return fmt.Errorf("load conversation baseline: %w", err)
	}

	for _, conv := range conversations {
		d.unread.InitBaseline(conv)
		if err := d.watch(ctx, conv.ID); err != nil {
			d.logger.Warn("conversation channel unavailable, polling will cover it",
				"conversation", conv.ID, "error", err)
		}
	}

	_, err = d.registry.Subscribe(ctx, notify.HotelChannel(d.hotelID), map[string]notify.HandlerFunc{
		notify.EventNewConversation: func(payload json.RawMessage) {
			d.onNewConversation(payload)
		},
	})
	if err != nil {
		d.logger.Warn("hotel broadcast channel unavailable, polling will cover it", "error", err)
	}

	d.logger.Info("desk started", "hotel", d.hotelID, "conversations", len(conversations))
	return nil
}

// watch opens one conversation's message channel. The handler reads live
// aggregator state at delivery time, so selecting a different conversation
// never requires resubscribing.
func (d *Desk) watch(ctx context.Context, conversationID int64) error {
	name := notify.ConversationChannel(d.hotelID, conversationID)
	_, err := d.registry.Subscribe(ctx, name, map[string]notify.HandlerFunc{
		notify.EventNewMessage: func(payload json.RawMessage) {
			var ev model.MessageEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				d.logger.Warn("malformed message event", "channel", name, "error", err)
				return
			}
			id := ev.ConversationID
			if id == 0 {
				id = conversationID
			}
			d.unread.OnMessageEvent(id, ev.Message)
		},
	})
	return err
}

func (d *Desk) onNewConversation(payload json.RawMessage) {
	var ev model.ConversationEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.logger.Warn("malformed conversation event", "error", err)
		return
	}

	d.unread.InitBaseline(model.Conversation{
		ID:        ev.ConversationID,
		HotelID:   d.hotelID,
		Room:      ev.Room,
		GuestName: ev.GuestName,
	})

	// Handlers run on transport goroutines after Start returned; the
	// subscription itself should not inherit a long-gone request context.
	if err := d.watch(context.Background(), ev.ConversationID); err != nil {
		d.logger.Warn("new conversation channel unavailable", "conversation", ev.ConversationID, "error", err)
	}
	d.logger.Info("conversation opened", "conversation", ev.ConversationID, "room", ev.Room)
}

// Open selects a conversation: it becomes the active one (suppressing its
// unread accrual) and is acknowledged as read.
func (d *Desk) Open(ctx context.Context, conversationID int64) error {
	d.unread.SetActive(conversationID)
	return d.unread.MarkRead(ctx, conversationID)
}

// Deselect clears the active conversation; messages count as unseen again.
func (d *Desk) Deselect() {
	d.unread.SetActive(0)
}

func (d *Desk) MarkRead(ctx context.Context, conversationID int64) error {
	return d.unread.MarkRead(ctx, conversationID)
}

func (d *Desk) Unread(conversationID int64) int {
	return d.unread.Unread(conversationID)
}

func (d *Desk) TotalUnread() int {
	return d.unread.Total()
}

func (d *Desk) Conversations() []model.Conversation {
	return d.unread.Conversations()
}

func (d *Desk) Channels() []string {
	return d.registry.Channels()
}

// Stop tears down every subscription; the desk is done.
func (d *Desk) Stop() {
	d.registry.UnsubscribeAll()
}

// Reconcile merges the server's unread summary with push-derived state:
// it fills conversations that never got a baseline and raises counts the
// push path missed. It never lowers a count — a fresher optimistic
// mark-read zero would otherwise resurrect as a stale badge.
func (d *Desk) Reconcile(ctx context.Context) error {
	summary, err := d.api.UnreadSummary(ctx, d.hotelID)
	if err != nil {
		return fmt.Errorf("unread summary: %w", err)
	}

	for _, s := range summary {
		if !d.unread.Synced(s.ConversationID) {
			d.unread.InitBaseline(model.Conversation{ID: s.ConversationID, HotelID: d.hotelID, UnreadCount: s.UnreadCount})
			if err := d.watch(ctx, s.ConversationID); err != nil {
				d.logger.Warn("conversation channel unavailable", "conversation", s.ConversationID, "error", err)
			}
			continue
		}
		if s.UnreadCount > d.unread.Unread(s.ConversationID) {
			d.unread.Resync(s.ConversationID, s.UnreadCount)
		}
	}
	return nil
}

// RunReconciler polls Reconcile until the context ends. Blocking; run it
// in a goroutine.
func (d *Desk) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Reconcile(ctx); err != nil {
				d.logger.Warn("reconcile failed, notifications may be delayed", "error", err)
			}
		}
	}
}
