package chat

import (
	"encoding/json"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

// EventType names a websocket event.
type EventType string

// Inbound event types.
const (
	TypeSendMessage     EventType = "sendMessage"
	TypeMarkRead        EventType = "markRead"
	TypeGetConversation EventType = "getConversation"
	TypeGetUnread       EventType = "getUnread"
)

// Outbound event types.
const (
	TypeOnlineUsers EventType = "onlineUsers"
	TypeUserStatus  EventType = "userStatus"
	TypeNewMessage  EventType = "newMessage"
	TypeResult      EventType = "result"
	TypeError       EventType = "error"
)

// Status is a user's presence state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Event is the envelope of every frame in both directions.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"requestId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// inboundEvent defers payload decoding until the type is known.
type inboundEvent struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// OnlineUser is one entry of the onlineUsers snapshot.
type OnlineUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

func onlineUserOf(u user.User) OnlineUser {
	return OnlineUser{UserID: u.ID, Name: u.Name, Color: u.Color}
}

// UserStatusPayload announces a presence transition. Name and color are only set for online.
type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status Status `json:"status"`
	Name   string `json:"name,omitempty"`
	Color  string `json:"color,omitempty"`
}

// Sender describes the author of a delivered message.
type Sender struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// NewMessagePayload is a stored message plus its author, pushed to live channels.
type NewMessagePayload struct {
	message.Message
	Sender Sender `json:"sender"`
}

// ErrorPayload carries an errs code and its message.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendMessagePayload is the body of a sendMessage event.
type SendMessagePayload struct {
	Content     string `json:"content"`
	ReceiverID  string `json:"receiverId" validate:"required"`
	SenderColor string `json:"senderColor,omitempty"`
}

// MarkReadPayload is the body of a markRead event.
type MarkReadPayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

// GetConversationPayload is the body of a getConversation event.
type GetConversationPayload struct {
	OtherUserID string `json:"otherUserId" validate:"required"`
}

// encodeEvent marshals an outbound event.
func encodeEvent(t EventType, requestID string, payload any) ([]byte, error) {
	return json.Marshal(Event{Type: t, RequestID: requestID, Payload: payload})
}
