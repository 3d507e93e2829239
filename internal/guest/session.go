// Package guest owns the token-scoped conversation session of the guest
// portal: PIN exchange, revalidation on load, durable local persistence,
// and the binding of the session to its push channel.
package guest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/model"
	"github.com/guestdesk/concierge/internal/notify"
)

// SessionAPI is the external guest-session validation endpoint.
type SessionAPI interface {
	InitializeGuestSession(ctx context.Context, pin, existingToken string) (*model.GuestSession, error)
	ValidateGuestSession(ctx context.Context, token string) (*model.GuestSession, bool, error)
}

// Manager drives one room's session lifecycle. Network failures never
// mutate stored state; only an explicit invalid/expired signal clears it.
type Manager struct {
	api      SessionAPI
	store    Store
	roomCode string
	logger   *slog.Logger
}

func NewManager(api SessionAPI, store Store, roomCode string, logger *slog.Logger) *Manager {
	return &Manager{api: api, store: store, roomCode: roomCode, logger: logger}
}

// Initialize exchanges a PIN for a session and persists it. Any token
// already in storage rides along so the server can extend a still-valid
// session instead of issuing a new one.
func (m *Manager) Initialize(ctx context.Context, pin string) (*model.GuestSession, error) {
	var existing string
	if cur, err := m.store.Load(m.roomCode); err == nil && cur != nil {
		existing = cur.Token
	}

	sess, err := m.api.InitializeGuestSession(ctx, pin, existing)
	if err != nil {
		return nil, fmt.Errorf("initialize session: %w", err)
	}
	if sess.RoomCode == "" {
		sess.RoomCode = m.roomCode
	}

	if err := m.store.Save(m.roomCode, sess); err != nil {
		// The session is still good in memory; losing persistence only
		// costs a PIN re-entry on the next load.
		m.logger.Warn("failed to persist session", "room", m.roomCode, "error", err)
	}
	m.logger.Info("guest session initialized", "room", m.roomCode, "conversation", sess.ConversationID)
	return sess, nil
}

// Validate revalidates the stored session on load. Returns (nil, nil) when
// nothing is stored. A server-signalled invalid (or a token whose
// server-issued exp claim has passed) clears the record and returns a
// validation error; transient network failures keep the record untouched.
func (m *Manager) Validate(ctx context.Context) (*model.GuestSession, error) {
	sess, err := m.store.Load(m.roomCode)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	if tokenExpired(sess.Token) {
		m.Clear()
		return nil, apperr.ErrSessionExpired
	}

	refreshed, valid, err := m.api.ValidateGuestSession(ctx, sess.Token)
	if err != nil {
		// Fail closed: keep the known-good record through a network blip.
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if !valid {
		m.Clear()
		return nil, apperr.ErrSessionInvalid
	}

	if refreshed != nil {
		if refreshed.RoomCode == "" {
			refreshed.RoomCode = m.roomCode
		}
		if err := m.store.Save(m.roomCode, refreshed); err != nil {
			m.logger.Warn("failed to refresh stored session", "room", m.roomCode, "error", err)
		}
		return refreshed, nil
	}
	return sess, nil
}

// Clear removes the stored record; explicit logout.
func (m *Manager) Clear() {
	if err := m.store.Delete(m.roomCode); err != nil {
		m.logger.Warn("failed to clear session", "room", m.roomCode, "error", err)
	}
}

// Watch subscribes the session's channel: staff replies and handler
// reassignments. The channel name comes from the server verbatim.
func (m *Manager) Watch(ctx context.Context, registry *notify.Registry, sess *model.GuestSession,
	onMessage func(ev model.MessageEvent), onHandlerChange func(staffHandler string)) (*notify.Handle, error) {

	handlers := map[string]notify.HandlerFunc{
		notify.EventNewMessage: func(payload json.RawMessage) {
			var ev model.MessageEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				m.logger.Warn("malformed message event", "channel", sess.Channel, "error", err)
				return
			}
			onMessage(ev)
		},
	}
	if onHandlerChange != nil {
		handlers[notify.EventHandlerAssigned] = func(payload json.RawMessage) {
			var ev model.HandlerEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				m.logger.Warn("malformed handler event", "channel", sess.Channel, "error", err)
				return
			}
			onHandlerChange(ev.StaffHandler)
		}
	}
	return registry.Subscribe(ctx, sess.Channel, handlers)
}

// tokenExpired reports whether the token carries an exp claim in the past.
// The claim is server-issued, so a passed expiry counts as an explicit
// invalidity signal. The signature is not checked here; the server owns
// the secret, and anything unparsable falls through to server validation.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
