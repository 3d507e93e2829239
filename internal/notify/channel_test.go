package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Names address live channels on the server side; any drift breaks interop.
func TestChannelNames(t *testing.T) {
	assert.Equal(t, "hotel-42-conversation-7-chat", ConversationChannel("42", 7))
	assert.Equal(t, "hotel-x-conversation-9-chat", ConversationChannel("x", 9))
	assert.Equal(t, "hotel-42-conversations", HotelChannel("42"))
	assert.NotEqual(t, ConversationChannel("42", 7), HotelChannel("42"))
}
