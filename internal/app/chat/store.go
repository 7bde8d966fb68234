package chat

import (
	"context"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// Store is the persistence contract the chat core depends on. Lookups report
// message.ErrNotFound and user.ErrNotFound for missing rows; any other error is treated
// as the store being unavailable.
type Store interface {
	SaveMessage(ctx context.Context, content, senderID, receiverID, senderColor string) (message.Message, error)
	FindMessage(ctx context.Context, id string) (message.Message, error)
	FindConversation(ctx context.Context, userA, userB string) ([]message.Message, error)
	FindUnread(ctx context.Context, receiverID string) ([]message.Message, error)
	FindReceived(ctx context.Context, receiverID string) ([]message.Message, error)

	// SetRead marks the message read and reports whether a row changed.
	SetRead(ctx context.Context, id string) (bool, error)

	FindUser(ctx context.Context, id string) (user.User, error)
}
