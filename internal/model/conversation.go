package model

import "time"

type Conversation struct {
	ID          int64      `json:"id"`
	HotelID     string     `json:"hotel_id"`
	Room        string     `json:"room"`
	GuestName   string     `json:"guest_name,omitempty"`
	LastMessage string     `json:"last_message,omitempty"`
	UnreadCount int        `json:"unread_count"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type UnreadSummary struct {
	ConversationID int64 `json:"conversation_id"`
	UnreadCount    int   `json:"unread_count"`
}
