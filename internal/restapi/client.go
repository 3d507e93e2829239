// Package restapi is the client for the hotel platform's conversation and
// guest-session REST API. The API owns all conversation data; this layer
// only reads baselines and acknowledges reads.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/model"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}
}

// ListConversations fetches the conversation baseline for a hotel,
// including per-conversation unread counts and last messages.
func (c *Client) ListConversations(ctx context.Context, hotelID string) ([]model.Conversation, error) {
	var out []model.Conversation
	path := fmt.Sprintf("/api/hotels/%s/conversations", url.PathEscape(hotelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, apperr.ErrBaselineFetch.Wrap(err)
	}
	return out, nil
}

// UnreadSummary fetches the server's current unread counts, used by the
// polling reconciler as a backup to push events.
func (c *Client) UnreadSummary(ctx context.Context, hotelID string) ([]model.UnreadSummary, error) {
	var out []model.UnreadSummary
	path := fmt.Sprintf("/api/hotels/%s/conversations/unread", url.PathEscape(hotelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, apperr.ErrBaselineFetch.Wrap(err)
	}
	return out, nil
}

// MarkConversationRead acknowledges a read to the server. Satisfies the
// aggregator's ReadAcker.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

type guestSessionRequest struct {
	Pin   string `json:"pin"`
	Token string `json:"session_token,omitempty"`
}

// InitializeGuestSession exchanges a PIN for a session. A stored token is
// sent along so the server can extend a still-valid session instead of
// replacing it.
func (c *Client) InitializeGuestSession(ctx context.Context, pin, existingToken string) (*model.GuestSession, error) {
	var out model.GuestSession
	err := c.do(ctx, http.MethodPost, "/api/guest/session", guestSessionRequest{Pin: pin, Token: existingToken}, &out)
	if err != nil {
		var status *statusError
		if asStatus(err, &status) && (status.code == http.StatusUnauthorized || status.code == http.StatusForbidden) {
			return nil, apperr.ErrPinRejected.Wrap(err)
		}
		return nil, err
	}
	return &out, nil
}

type validateResponse struct {
	Valid   bool                `json:"valid"`
	Session *model.GuestSession `json:"session,omitempty"`
}

// ValidateGuestSession asks the server whether a stored token is still
// good. valid=false is an explicit server signal, distinct from transport
// errors, and the refreshed session record rides along when valid.
func (c *Client) ValidateGuestSession(ctx context.Context, token string) (*model.GuestSession, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/guest/session/validate", nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("validate session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &statusError{code: resp.StatusCode, message: readErrorBody(resp.Body)}
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode validate response: %w", err)
	}
	if !out.Valid {
		return nil, false, nil
	}
	return out.Session, true, nil
}

const defaultTimeout = 15 * time.Second

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, message: readErrorBody(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("http %d: %s", e.code, e.message)
	}
	return fmt.Sprintf("http %d", e.code)
}

func asStatus(err error, target **statusError) bool {
	return errors.As(err, target)
}

// readErrorBody extracts the server's {"error": msg} body when present.
func readErrorBody(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
