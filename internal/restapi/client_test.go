package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/model"
)

func TestListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hotels/42/conversations", r.URL.Path)
		assert.Equal(t, "Bearer staff-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]model.Conversation{
			{ID: 7, Room: "204", LastMessage: "towels please", UnreadCount: 2},
			{ID: 9, Room: "310", UnreadCount: 0},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "staff-token", nil)
	convs, err := c.ListConversations(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, int64(7), convs[0].ID)
	assert.Equal(t, "towels please", convs[0].LastMessage)
}

func TestListConversationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
	}))
	defer srv.Close()

	c := New(srv.URL, "staff-token", nil)
	_, err := c.ListConversations(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrBaselineFetch))
	assert.Contains(t, err.Error(), "internal error")
}

func TestMarkConversationRead(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "staff-token", nil)
	require.NoError(t, c.MarkConversationRead(context.Background(), 7))
	assert.Equal(t, "POST /api/conversations/7/read", gotPath)
}

func TestUnreadSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hotels/42/conversations/unread", r.URL.Path)
		json.NewEncoder(w).Encode([]model.UnreadSummary{
			{ConversationID: 7, UnreadCount: 3},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "staff-token", nil)
	summary, err := c.UnreadSummary(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 3, summary[0].UnreadCount)
}

func TestInitializeGuestSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req guestSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1234", req.Pin)
		assert.Equal(t, "old-token", req.Token)
		json.NewEncoder(w).Encode(model.GuestSession{
			Token:          "abc",
			ConversationID: 9,
			Channel:        "hotel-x-conversation-9-chat",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	sess, err := c.InitializeGuestSession(context.Background(), "1234", "old-token")
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.Token)
	assert.Equal(t, int64(9), sess.ConversationID)
	assert.Equal(t, "hotel-x-conversation-9-chat", sess.Channel)
}

func TestInitializeGuestSessionPinRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid pin"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.InitializeGuestSession(context.Background(), "0000", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrPinRejected))
}

func TestValidateGuestSession(t *testing.T) {
	t.Run("valid refreshes session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(validateResponse{
				Valid:   true,
				Session: &model.GuestSession{Token: "abc", ConversationID: 9, Channel: "hotel-x-conversation-9-chat", StaffHandler: "maria"},
			})
		}))
		defer srv.Close()

		c := New(srv.URL, "", nil)
		sess, valid, err := c.ValidateGuestSession(context.Background(), "abc")
		require.NoError(t, err)
		assert.True(t, valid)
		require.NotNil(t, sess)
		assert.Equal(t, "maria", sess.StaffHandler)
	})

	t.Run("explicit invalid is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(validateResponse{Valid: false})
		}))
		defer srv.Close()

		c := New(srv.URL, "", nil)
		sess, valid, err := c.ValidateGuestSession(context.Background(), "abc")
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Nil(t, sess)
	})

	t.Run("401 is an explicit invalid signal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := New(srv.URL, "", nil)
		_, valid, err := c.ValidateGuestSession(context.Background(), "abc")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("server failure is an error, not invalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := New(srv.URL, "", nil)
		_, _, err := c.ValidateGuestSession(context.Background(), "abc")
		require.Error(t, err)
	})
}
