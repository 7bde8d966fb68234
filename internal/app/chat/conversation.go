package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// Conversations serves history, the unread backlog and read receipts.
type Conversations struct {
	store  Store
	logger zerolog.Logger
}

// NewConversations returns a Conversations service over store.
func NewConversations(store Store) *Conversations {
	return &Conversations{
		store:  store,
		logger: logx.Component("Conversations"),
	}
}

// GetConversation returns every message exchanged between userID and otherUserID, oldest first.
func (c *Conversations) GetConversation(ctx context.Context, userID, otherUserID string) ([]message.Message, error) {
	messages, err := c.store.FindConversation(ctx, userID, otherUserID)
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", userID).Str("other_user_id", otherUserID).Msg("Conversation query failed")
		return nil, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	return messages, nil
}

// GetUnreadForUser returns the unread messages addressed to userID, newest first.
func (c *Conversations) GetUnreadForUser(ctx context.Context, userID string) ([]message.Message, error) {
	messages, err := c.store.FindUnread(ctx, userID)
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", userID).Msg("Unread query failed")
		return nil, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	return messages, nil
}

// GetReceivedForUser returns every message addressed to userID, read or not, newest first.
func (c *Conversations) GetReceivedForUser(ctx context.Context, userID string) ([]message.Message, error) {
	messages, err := c.store.FindReceived(ctx, userID)
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", userID).Msg("Received query failed")
		return nil, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	return messages, nil
}

// MarkRead marks messageID read on behalf of actorID, who must be its receiver.
// Marking an already read message succeeds without touching storage.
func (c *Conversations) MarkRead(ctx context.Context, messageID, actorID string) (message.Message, error) {
	m, err := c.store.FindMessage(ctx, messageID)
	if errors.Is(err, message.ErrNotFound) {
		return message.Message{}, errs.NewError(errs.ErrMessageNotFound)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", messageID).Msg("Message lookup failed")
		return message.Message{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	if m.ReceiverID != actorID {
		c.logger.Warn().Str("message_id", messageID).Str("actor_id", actorID).Msg("Read receipt from non-receiver rejected")
		return message.Message{}, errs.NewError(errs.ErrNotMessageReceiver)
	}

	if m.IsRead {
		return m, nil
	}

	// a concurrent receipt may win the update; the message is read either way
	if _, err := c.store.SetRead(ctx, messageID); err != nil {
		c.logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to mark message read")
		return message.Message{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	m.IsRead = true
	return m, nil
}
