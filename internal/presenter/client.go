package presenter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096

	// Inbound UI frames are cheap but drive REST calls; cap them.
	framesPerSecond = 5
	frameBurst      = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// ServeWS attaches a dashboard UI. When uiToken is configured the client
// must present it; the daemon listens on localhost, the token guards
// against other local processes.
func ServeWS(hub *Hub, uiToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if uiToken != "" && r.URL.Query().Get("token") != uiToken {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{
			hub:     hub,
			conn:    conn,
			send:    make(chan []byte, 256),
			limiter: rate.NewLimiter(framesPerSecond, frameBurst),
		}

		hub.register <- client
		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError("too many frames", "RATE_LIMITED")
			continue
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(frame Frame) {
	controls := c.hub.getControls()

	switch frame.Type {
	case TypeConversationSelect:
		var payload ConversationPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || controls == nil {
			return
		}
		if err := controls.Open(context.Background(), payload.ConversationID); err != nil {
			// Counter already zeroed optimistically; the UI just hears
			// that the acknowledgement is lagging.
			c.sendError("read acknowledgement delayed", "SYNC_LAGGING")
		}
		c.hub.BroadcastUnread(payload.ConversationID)

	case TypeConversationDeselect:
		if controls != nil {
			controls.Deselect()
		}

	case TypeConversationRead:
		var payload ConversationPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || controls == nil {
			return
		}
		if err := controls.MarkRead(context.Background(), payload.ConversationID); err != nil {
			c.sendError("read acknowledgement delayed", "SYNC_LAGGING")
		}
		c.hub.BroadcastUnread(payload.ConversationID)

	case TypePing:
		data, _ := NewFrame(TypePong, nil)
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *Client) sendError(message, code string) {
	data, _ := NewFrame(TypeError, ErrorPayload{Message: message, Code: code})
	select {
	case c.send <- data:
	default:
	}
}
