package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/randx"
	"duochat/internal/pkg/req"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 16384

	// storage calls made for one inbound event must finish within this time.
	requestTimeout = 10 * time.Second
)

// Client is a Channel backed by a WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	user user.User

	// send queues encoded frames for WritePump.
	send chan []byte

	// mu guards closed so Send never writes to a closed channel.
	mu     sync.Mutex
	closed bool

	disconnectOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for an authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, u user.User) *Client {
	id := randx.ChannelID()

	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		user: u,
		send: make(chan []byte, hub.opts.SendBuffer),
		logger: logx.Logger().With().
			Str("user_id", u.ID).
			Str("channel_id", id).
			Logger(),
	}
}

// ID implements Channel.
func (c *Client) ID() string { return c.id }

// User implements Channel.
func (c *Client) User() user.User { return c.user }

// Send implements Channel; it never blocks.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close implements Channel. WritePump flushes what is queued, sends a close frame and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Reject writes err as an error event followed by a close frame and closes the connection.
// It is used when the presence handshake fails before the pumps start.
func (c *Client) Reject(err error) {
	customErr := errs.From(err)

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if data, encErr := encodeEvent(TypeError, "", ErrorPayload{Code: customErr.Code, Message: customErr.Message}); encErr == nil {
		if wErr := c.conn.WriteMessage(websocket.TextMessage, data); wErr != nil {
			c.logger.Warn().Err(wErr).Msg("Failed to write rejection event")
		}
	}

	closeMessage := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, customErr.Message)
	if wErr := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); wErr != nil {
		c.logger.Warn().Err(wErr).Msg("Failed to write close frame")
	}

	c.Close()
	if cErr := c.conn.Close(); cErr != nil {
		c.logger.Error().Err(cErr).Msg("Client connection close error")
	}
}

// ReadPump reads frames until the connection fails, dispatching each to its handler.
// It disconnects the client from the hub exactly once on exit.
func (c *Client) ReadPump() {
	defer c.disconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInbound(frame)
	}
}

// disconnect unregisters the client and closes the connection, once.
func (c *Client) disconnect() {
	c.disconnectOnce.Do(func() {
		c.logger.Info().Msg("Client connection cleanup starting.")

		c.hub.Disconnect(c)
		c.Close()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	})
}

// processInbound decodes one frame and replies with a result or error event.
func (c *Client) processInbound(frame []byte) {
	var in inboundEvent
	if err := json.Unmarshal(frame, &in); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.reply(TypeError, "", errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.Context(), requestTimeout)
	defer cancel()

	var (
		data any
		err  error
	)

	switch in.Type {
	case TypeSendMessage:
		data, err = c.handleSendMessage(ctx, in.Payload)
	case TypeMarkRead:
		data, err = c.handleMarkRead(ctx, in.Payload)
	case TypeGetConversation:
		data, err = c.handleGetConversation(ctx, in.Payload)
	case TypeGetUnread:
		data, err = c.hub.Conversations().GetUnreadForUser(ctx, c.user.ID)
	default:
		c.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent unsupported message type")
		err = errs.NewError(errs.ErrUnsupportedEvent, in.Type)
	}

	if err != nil {
		c.reply(TypeError, in.RequestID, err)
		return
	}

	c.reply(TypeResult, in.RequestID, data)
}

func (c *Client) handleSendMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var payload SendMessagePayload
	if err := decodePayload(raw, &payload); err != nil {
		return nil, err
	}

	return c.hub.Router().Send(ctx, c, c.user.ID, payload.ReceiverID, payload.Content, payload.SenderColor)
}

func (c *Client) handleMarkRead(ctx context.Context, raw json.RawMessage) (any, error) {
	var payload MarkReadPayload
	if err := decodePayload(raw, &payload); err != nil {
		return nil, err
	}

	return c.hub.Conversations().MarkRead(ctx, payload.MessageID, c.user.ID)
}

func (c *Client) handleGetConversation(ctx context.Context, raw json.RawMessage) (any, error) {
	var payload GetConversationPayload
	if err := decodePayload(raw, &payload); err != nil {
		return nil, err
	}

	return c.hub.Conversations().GetConversation(ctx, c.user.ID, payload.OtherUserID)
}

// decodePayload unmarshals and validates an inbound payload.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errs.Wrap(errs.ErrInvalidJSONFormat, err)
	}
	if customErr := req.Validate(dst); customErr != nil {
		return customErr
	}
	return nil
}

// reply queues a result (data) or error (an error value) event for this client.
func (c *Client) reply(t EventType, requestID string, v any) {
	payload := v
	if err, ok := v.(error); ok {
		customErr := errs.From(err)
		payload = ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	}

	data, err := encodeEvent(t, requestID, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(t)).Msg("Error marshaling reply")
		return
	}

	deliver(c.logger, c, data)
}

// WritePump writes queued frames and periodic pings until the send queue is closed
// or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// unblocks ReadPump, which then disconnects from the hub
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame, or a close frame when the queue was closed.
// Returns false when WritePump should stop.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
