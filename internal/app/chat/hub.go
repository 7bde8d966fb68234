package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// ErrHubClosed is returned by Connect after Shutdown has started.
var ErrHubClosed = errors.New("hub is shutting down")

// Options configures a Hub.
type Options struct {
	// MaxContentBytes caps message content size.
	MaxContentBytes int

	// SendBuffer is the outbound queue length of each client channel.
	SendBuffer int
}

// Hub wires the registry, presence, router and conversation services together and owns
// the lifecycle of every live channel.
type Hub struct {
	registry      *Registry
	presence      *Presence
	router        *Router
	conversations *Conversations

	store Store
	opts  Options

	// ctx bounds storage calls made on behalf of channels; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed and the Add side of live.
	mu     sync.Mutex
	closed bool

	// live counts registered channels so Shutdown can wait for their disconnects.
	live sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub over store.
func NewHub(store Store, opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()

	return &Hub{
		registry:      registry,
		presence:      NewPresence(registry, store),
		router:        NewRouter(store, registry, opts.MaxContentBytes),
		conversations: NewConversations(store),
		store:         store,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logx.Component("Hub"),
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Router exposes the delivery router.
func (h *Hub) Router() *Router { return h.router }

// Conversations exposes the conversation and backlog service.
func (h *Hub) Conversations() *Conversations { return h.conversations }

// Context is the hub's lifetime context.
func (h *Hub) Context() context.Context { return h.ctx }

// Connect registers ch and runs the presence handshake. On error ch is not registered.
func (h *Hub) Connect(ctx context.Context, ch Channel) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.live.Add(1)
	h.mu.Unlock()

	if err := h.presence.Connect(ctx, ch); err != nil {
		h.live.Done()
		return err
	}

	// Shutdown may have snapshotted the registry while the handshake was loading profiles.
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		h.Disconnect(ch)
		return ErrHubClosed
	}

	return nil
}

// Disconnect unregisters ch. It is safe to call for channels that were never registered.
func (h *Hub) Disconnect(ch Channel) {
	if h.presence.Disconnect(ch) != NotRegistered {
		h.live.Done()
	}
}

// OnlineUsers resolves the ids of every online user to their stored profiles.
func (h *Hub) OnlineUsers(ctx context.Context) ([]user.User, error) {
	ids := h.registry.AllOnlineUserIDs()
	users := make([]user.User, 0, len(ids))

	for _, id := range ids {
		u, err := h.store.FindUser(ctx, id)
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrStorageUnavailable, err)
		}
		users = append(users, u)
	}

	return users, nil
}

// Shutdown rejects new connections, closes every live channel and waits until all of
// them have disconnected or ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	channels := h.registry.Channels()
	h.logger.Info().Int("channels", len(channels)).Msg("Shutting down hub")

	for _, ch := range channels {
		ch.Close()
	}

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()

	defer h.cancel()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown complete.")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("Hub shutdown timed out with channels still open")
		return ctx.Err()
	}
}
