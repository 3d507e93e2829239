package model

// MessageEvent is the payload of a "new-message" push event.
type MessageEvent struct {
	ConversationID int64  `json:"conversation"`
	Message        string `json:"message"`
	Sender         string `json:"sender,omitempty"`
	SentAt         string `json:"sent_at,omitempty"`
}

// ConversationEvent is the payload of a "new-conversation" broadcast on the
// hotel channel, emitted when a guest opens a conversation.
type ConversationEvent struct {
	ConversationID int64  `json:"conversation"`
	Room           string `json:"room"`
	GuestName      string `json:"guest_name,omitempty"`
}

// HandlerEvent is the payload of a "handler-assigned" event on a guest
// channel, emitted when staff ownership of the conversation changes.
type HandlerEvent struct {
	ConversationID int64  `json:"conversation"`
	StaffHandler   string `json:"staff_handler"`
}
