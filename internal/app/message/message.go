// Package message defines the persisted direct message and its conversation key.
package message

import (
	"errors"
	"time"

	"duochat/internal/app/user"
)

// LegacyColor is reported for rows stored before sender colors were recorded.
const LegacyColor = user.DefaultColor

// ErrNotFound is returned by stores when no message has the requested id.
var ErrNotFound = errors.New("message not found")

// Message is one stored direct message.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
	SenderColor string    `json:"senderColor"`
}

// Key returns the conversation the message belongs to.
func (m Message) Key() ConversationKey {
	return NewConversationKey(m.SenderID, m.ReceiverID)
}

// SenderColorOrLegacy maps a missing stored color to LegacyColor. Stores call it on read;
// the stored value is never recomputed from the sender's current profile.
func SenderColorOrLegacy(stored string) string {
	if stored == "" {
		return LegacyColor
	}
	return stored
}

// ConversationKey is the unordered pair of participants. A and B are kept sorted so
// both directions of a conversation produce the same key.
type ConversationKey struct {
	A string
	B string
}

// NewConversationKey builds the key for the pair {x, y}.
func NewConversationKey(x, y string) ConversationKey {
	if y < x {
		x, y = y, x
	}
	return ConversationKey{A: x, B: y}
}

// String renders the key as "a:b".
func (k ConversationKey) String() string {
	return k.A + ":" + k.B
}

