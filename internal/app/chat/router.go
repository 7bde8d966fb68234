package chat

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// conversationStripes is the number of locks conversations are hashed onto.
const conversationStripes = 64

// Router persists messages and pushes them to the live channels of both participants.
type Router struct {
	store           Store
	registry        *Registry
	maxContentBytes int

	// stripes serialize save+enqueue per conversation so every participant observes
	// a conversation's messages in storage order.
	stripes [conversationStripes]sync.Mutex

	logger zerolog.Logger
}

// NewRouter returns a Router enforcing maxContentBytes on message content.
func NewRouter(store Store, registry *Registry, maxContentBytes int) *Router {
	return &Router{
		store:           store,
		registry:        registry,
		maxContentBytes: maxContentBytes,
		logger:          logx.Component("Router"),
	}
}

// Send validates and stores a message from senderID to receiverID, then queues it on every
// channel of the receiver and on every channel of the sender except origin (nil for sends
// that did not come from a live channel). senderColor, when non-empty, must be #RRGGBB;
// otherwise the sender's stored profile color is used. Nothing is delivered unless the
// message was stored, and failed deliveries to individual channels are only logged.
func (r *Router) Send(ctx context.Context, origin Channel, senderID, receiverID, content, senderColor string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len(content) > r.maxContentBytes {
		return message.Message{}, errs.NewError(errs.ErrMessageContentTooLong, r.maxContentBytes)
	}
	if senderID == receiverID {
		return message.Message{}, errs.NewError(errs.ErrSelfMessage)
	}
	if senderColor != "" && !user.ValidColor(senderColor) {
		return message.Message{}, errs.NewError(errs.ErrInvalidColor)
	}

	receiver, err := r.store.FindUser(ctx, receiverID)
	if errors.Is(err, user.ErrNotFound) {
		return message.Message{}, errs.NewError(errs.ErrReceiverNotFound)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("Receiver lookup failed")
		return message.Message{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	sender, err := r.store.FindUser(ctx, senderID)
	if errors.Is(err, user.ErrNotFound) {
		return message.Message{}, errs.NewError(errs.ErrUnauthorized)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("sender_id", senderID).Msg("Sender lookup failed")
		return message.Message{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	color := sender.Color
	if senderColor != "" {
		color = user.NormalizeColor(senderColor)
	}
	if color == "" {
		color = message.LegacyColor
	}

	stripe := r.stripeFor(message.NewConversationKey(sender.ID, receiver.ID))
	stripe.Lock()
	defer stripe.Unlock()

	saved, err := r.store.SaveMessage(ctx, content, sender.ID, receiver.ID, color)
	if err != nil {
		r.logger.Error().Err(err).
			Str("sender_id", sender.ID).
			Str("receiver_id", receiver.ID).
			Msg("Failed to store message; nothing delivered")
		return message.Message{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	data, err := encodeEvent(TypeNewMessage, "", NewMessagePayload{
		Message: saved,
		Sender:  Sender{ID: sender.ID, Name: sender.Name, Color: saved.SenderColor},
	})
	if err != nil {
		// stored; the receiver still gets it through the unread backlog
		r.logger.Error().Err(err).Str("message_id", saved.ID).Msg("Failed to encode message event")
		return saved, nil
	}

	delivered := 0
	for _, ch := range r.registry.ChannelsFor(receiver.ID) {
		if deliver(r.logger, ch, data) {
			delivered++
		}
	}
	for _, ch := range r.registry.ChannelsFor(sender.ID) {
		if ch == origin {
			continue
		}
		deliver(r.logger, ch, data)
	}

	r.logger.Debug().
		Str("message_id", saved.ID).
		Str("sender_id", sender.ID).
		Str("receiver_id", receiver.ID).
		Int("receiver_channels", delivered).
		Msg("Message routed")

	return saved, nil
}

func (r *Router) stripeFor(key message.ConversationKey) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return &r.stripes[h.Sum32()%conversationStripes]
}
