package model

type GuestSession struct {
	Token          string `json:"session_token"`
	ConversationID int64  `json:"conversation_id"`
	Channel        string `json:"channel_name"`
	StaffHandler   string `json:"current_staff_handler,omitempty"`
	RoomCode       string `json:"room_code,omitempty"`
}
