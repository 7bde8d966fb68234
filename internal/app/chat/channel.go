package chat

import (
	"errors"

	"github.com/rs/zerolog"

	"duochat/internal/app/user"
)

var (
	// ErrSendQueueFull is returned by Channel.Send when the outbound buffer has no room.
	ErrSendQueueFull = errors.New("channel send queue full")

	// ErrChannelClosed is returned by Channel.Send after the channel was closed.
	ErrChannelClosed = errors.New("channel closed")
)

// Channel is one live connection of a user. Send must not block: it either queues the
// frame or fails with ErrSendQueueFull / ErrChannelClosed.
type Channel interface {
	// ID uniquely identifies the connection for logging.
	ID() string

	// User is the profile the connection was authenticated as.
	User() user.User

	Send(data []byte) error

	// Close stops the channel; queued frames may still be flushed by the transport.
	Close()
}

// deliver queues data on ch and logs a dropped frame. A failed delivery only affects ch.
func deliver(logger zerolog.Logger, ch Channel, data []byte) bool {
	if err := ch.Send(data); err != nil {
		logger.Warn().Err(err).
			Str("channel_id", ch.ID()).
			Str("user_id", ch.User().ID).
			Msg("Dropped frame for channel")
		return false
	}
	return true
}
