package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/internal/app/chat/mocks"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
)

// selfClosingChannel disconnects itself from the hub when closed, like a Client whose
// pumps exit after the send queue is closed.
type selfClosingChannel struct {
	*fakeChannel
	hub *Hub
}

func (c *selfClosingChannel) Close() {
	c.fakeChannel.Close()
	go c.hub.Disconnect(c)
}

func TestHub_ShutdownClosesChannelsAndWaits(t *testing.T) {
	req := require.New(t)

	hub := NewHub(newMemStore(alice, bob), Options{MaxContentBytes: testMaxContent, SendBuffer: 8})

	aliceCh := &selfClosingChannel{fakeChannel: newFakeChannel("alice-1", alice), hub: hub}
	bobCh := &selfClosingChannel{fakeChannel: newFakeChannel("bob-1", bob), hub: hub}
	req.NoError(hub.Connect(context.Background(), aliceCh))
	req.NoError(hub.Connect(context.Background(), bobCh))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req.NoError(hub.Shutdown(ctx))
	req.Empty(hub.Registry().AllOnlineUserIDs())
	req.Error(hub.Context().Err())

	err := hub.Connect(context.Background(), newFakeChannel("late", carol))
	req.ErrorIs(err, ErrHubClosed)
}

// gatedStore parks the first FindUser call until release is closed.
type gatedStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) FindUser(ctx context.Context, id string) (user.User, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.memStore.FindUser(ctx, id)
}

func TestHub_ShutdownDuringHandshake(t *testing.T) {
	req := require.New(t)

	mem := newMemStore(alice, bob)
	hub := NewHub(mem, Options{MaxContentBytes: testMaxContent, SendBuffer: 8})

	bobCh := &selfClosingChannel{fakeChannel: newFakeChannel("bob-1", bob), hub: hub}
	req.NoError(hub.Connect(context.Background(), bobCh))

	store := &gatedStore{memStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	hub.presence = NewPresence(hub.registry, store)

	aliceCh := &selfClosingChannel{fakeChannel: newFakeChannel("alice-1", alice), hub: hub}
	connectErr := make(chan error, 1)
	go func() { connectErr <- hub.Connect(context.Background(), aliceCh) }()
	<-store.entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- hub.Shutdown(ctx) }()

	req.Eventually(bobCh.isClosed, time.Second, 5*time.Millisecond)
	close(store.release)

	req.ErrorIs(<-connectErr, ErrHubClosed)
	req.NoError(<-shutdownErr)
	req.Empty(hub.Registry().AllOnlineUserIDs())
}

func TestHub_ShutdownTimesOut(t *testing.T) {
	req := require.New(t)

	hub := NewHub(newMemStore(alice), Options{MaxContentBytes: testMaxContent, SendBuffer: 8})
	req.NoError(hub.Connect(context.Background(), newFakeChannel("alice-1", alice)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req.ErrorIs(hub.Shutdown(ctx), context.DeadlineExceeded)
}

func TestHub_OnlineUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	hub := NewHub(newMemStore(alice, bob, carol), Options{MaxContentBytes: testMaxContent, SendBuffer: 8})
	req.NoError(hub.Connect(ctx, newFakeChannel("bob-1", bob)))
	req.NoError(hub.Connect(ctx, newFakeChannel("alice-1", alice)))

	online, err := hub.OnlineUsers(ctx)
	req.NoError(err)
	req.Equal([]user.User{alice, bob}, online)
}

func TestHub_FailedConnectIsNotTracked(t *testing.T) {
	req := require.New(t)

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	hub := NewHub(store, Options{MaxContentBytes: testMaxContent, SendBuffer: 8})

	bobCh := newFakeChannel("bob-1", bob)
	hub.Registry().Register(bob.ID, bobCh)
	store.EXPECT().FindUser(gomock.Any(), bob.ID).Return(user.User{}, errors.New("down"))

	err := hub.Connect(context.Background(), newFakeChannel("alice-1", alice))
	req.True(errs.HasCode(err, errs.ErrStorageUnavailable))

	// bob was registered directly, so the hub is tracking no channels
	hub.Registry().Unregister(bobCh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(hub.Shutdown(ctx))
}
