package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/model"
)

// ReadAcker is the external read-acknowledgement endpoint.
type ReadAcker interface {
	MarkConversationRead(ctx context.Context, conversationID int64) error
}

type conversationState struct {
	model.Conversation
	// baselineSynced marks that the REST baseline has been applied. Events
	// observed before that are held in the count and merged, not erased,
	// when the baseline arrives.
	baselineSynced bool
}

// Aggregator reconciles unread counters from three sources: the REST
// baseline, routed push events, and local read actions. It is the sole
// mutator of counter state; everything else reads through its methods.
type Aggregator struct {
	mu            sync.Mutex
	acker         ReadAcker
	logger        *slog.Logger
	active        int64 // currently open conversation, 0 = none
	conversations map[int64]*conversationState
}

func NewAggregator(acker ReadAcker, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		acker:         acker,
		logger:        logger,
		conversations: make(map[int64]*conversationState),
	}
}

// SetActive records which conversation the user has open. The active
// conversation never accrues unread count. Pass 0 on deselect.
func (a *Aggregator) SetActive(conversationID int64) {
	a.mu.Lock()
	a.active = conversationID
	a.mu.Unlock()
}

func (a *Aggregator) Active() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// InitBaseline applies the REST-fetched starting state. Only the first
// call for a conversation is authoritative for the count: repeats refresh
// metadata without resetting an already-incremented counter. A baseline
// landing after push events were counted adds to them rather than erasing
// them.
func (a *Aggregator) InitBaseline(conv model.Conversation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.conversations[conv.ID]
	if !ok {
		c := conv
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		a.conversations[conv.ID] = &conversationState{Conversation: c, baselineSynced: true}
		return
	}

	if st.baselineSynced {
		a.applyMetadata(st, conv)
		return
	}

	// Late baseline: the push events counted so far stay on top of it.
	if conv.UnreadCount > 0 {
		st.UnreadCount += conv.UnreadCount
	}
	a.applyMetadata(st, conv)
	st.baselineSynced = true
}

// Resync is an explicit full server resync: the server count replaces the
// local one. Used by the reconciliation poller, never by baseline fetches.
func (a *Aggregator) Resync(conversationID int64, count int) {
	if count < 0 {
		count = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.conversations[conversationID]
	if !ok {
		a.conversations[conversationID] = &conversationState{
			Conversation:   model.Conversation{ID: conversationID, UnreadCount: count},
			baselineSynced: true,
		}
		return
	}
	st.UnreadCount = count
	st.baselineSynced = true
}

// OnMessageEvent records one routed message event. The counter increments
// unless the conversation is the active selection, in which case only the
// last message is updated: open means seen.
func (a *Aggregator) OnMessageEvent(conversationID int64, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.conversations[conversationID]
	if !ok {
		// First observation arrived via push; the baseline will merge later.
		st = &conversationState{Conversation: model.Conversation{ID: conversationID}}
		a.conversations[conversationID] = st
	}
	if message != "" {
		st.LastMessage = message
	}
	if conversationID == a.active {
		return
	}
	st.UnreadCount++
}

// MarkRead zeroes the counter optimistically, then acknowledges to the
// server. A failed acknowledgement is surfaced and logged but the local
// zero stands: one missed notification beats a stale unread badge. Any
// event arriving after this call counts as fresh unread.
func (a *Aggregator) MarkRead(ctx context.Context, conversationID int64) error {
	a.mu.Lock()
	if st, ok := a.conversations[conversationID]; ok {
		st.UnreadCount = 0
	}
	a.mu.Unlock()

	if a.acker == nil {
		return nil
	}
	if err := a.acker.MarkConversationRead(ctx, conversationID); err != nil {
		a.logger.Warn("mark-read acknowledgement failed", "conversation", conversationID, "error", err)
		return apperr.ErrMarkReadFailed.Wrap(err)
	}
	return nil
}

// Unread returns the counter for one conversation.
func (a *Aggregator) Unread(conversationID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.conversations[conversationID]; ok {
		return st.UnreadCount
	}
	return 0
}

// Total sums every conversation's positive count.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, st := range a.conversations {
		if st.UnreadCount > 0 {
			total += st.UnreadCount
		}
	}
	return total
}

// Synced reports whether a conversation has an applied REST baseline.
func (a *Aggregator) Synced(conversationID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.conversations[conversationID]
	return ok && st.baselineSynced
}

// Conversations returns a snapshot sorted by conversation id.
func (a *Aggregator) Conversations() []model.Conversation {
	a.mu.Lock()
	out := make([]model.Conversation, 0, len(a.conversations))
	for _, st := range a.conversations {
		out = append(out, st.Conversation)
	}
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Aggregator) applyMetadata(st *conversationState, conv model.Conversation) {
	if conv.Room != "" {
		st.Room = conv.Room
	}
	if conv.HotelID != "" {
		st.HotelID = conv.HotelID
	}
	if conv.GuestName != "" {
		st.GuestName = conv.GuestName
	}
	// A push-derived last message is newer than the REST copy; only fill
	// the gap when we have nothing yet.
	if st.LastMessage == "" && conv.LastMessage != "" {
		st.LastMessage = conv.LastMessage
	}
	if conv.UpdatedAt != nil {
		st.UpdatedAt = conv.UpdatedAt
	}
}
