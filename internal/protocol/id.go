package protocol

import "github.com/google/uuid"

// NewMessageID allocates a message identifier in the client protocol's
// "msg_" namespace.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}
