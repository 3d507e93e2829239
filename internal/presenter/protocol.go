package presenter

import "encoding/json"

const (
	// daemon → UI
	TypeNotify          = "notify.new_message"
	TypeUnreadUpdate    = "unread.update"
	TypeConversationNew = "conversation.new"
	TypeError           = "error"
	TypePong            = "pong"

	// UI → daemon
	TypeConversationSelect   = "conversation.select"
	TypeConversationDeselect = "conversation.deselect"
	TypeConversationRead     = "conversation.read"
	TypePing                 = "ping"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type NotifyPayload struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type UnreadPayload struct {
	ConversationID int64 `json:"conversation_id"`
	Count          int   `json:"count"`
	Total          int   `json:"total"`
}

type ConversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewFrame(frameType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Frame{Type: frameType, Payload: p})
}
