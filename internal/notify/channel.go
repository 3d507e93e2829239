package notify

import "fmt"

// Channel names follow the server's `{scope}-{entity}-{id}` convention and
// must match it byte for byte; the same strings address Redis channels,
// NATS subjects and the server's publisher.
//
// Guest sessions never build names locally: the session endpoint returns
// the channel name verbatim.

// ConversationChannel is the per-conversation message channel.
func ConversationChannel(hotelID string, conversationID int64) string {
	return fmt.Sprintf("hotel-%s-conversation-%d-chat", hotelID, conversationID)
}

// HotelChannel is the per-hotel broadcast channel announcing conversations
// opened after the initial list fetch.
func HotelChannel(hotelID string) string {
	return fmt.Sprintf("hotel-%s-conversations", hotelID)
}

// Event names emitted by the server.
const (
	EventNewMessage      = "new-message"
	EventNewConversation = "new-conversation"
	EventHandlerAssigned = "handler-assigned"
)
