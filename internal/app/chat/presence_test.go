package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/internal/app/chat/mocks"
	"duochat/internal/pkg/errs"
)

func TestPresence_ConnectAnnouncesFirstChannelOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	registry := NewRegistry()
	p := NewPresence(registry, newMemStore(alice, bob))

	// Given bob is online
	bobCh := newFakeChannel("bob-1", bob)
	req.NoError(p.Connect(ctx, bobCh))
	bobCh.reset()

	// When alice connects her first channel
	phone := newFakeChannel("alice-phone", alice)
	req.NoError(p.Connect(ctx, phone))

	// Then bob sees exactly one online event with her profile
	statuses := bobCh.eventsOfType(t, TypeUserStatus)
	req.Len(statuses, 1)
	status := decodePayloadAs[UserStatusPayload](t, statuses[0])
	req.Equal(UserStatusPayload{UserID: alice.ID, Status: StatusOnline, Name: alice.Name, Color: alice.Color}, status)

	// And alice's channel gets a snapshot of the others, not herself, and no status event
	snapshots := phone.eventsOfType(t, TypeOnlineUsers)
	req.Len(snapshots, 1)
	req.Equal([]OnlineUser{{UserID: bob.ID, Name: bob.Name, Color: bob.Color}},
		decodePayloadAs[[]OnlineUser](t, snapshots[0]))
	req.Empty(phone.eventsOfType(t, TypeUserStatus))

	// When alice connects a second channel nobody is told again
	bobCh.reset()
	phone.reset()
	laptop := newFakeChannel("alice-laptop", alice)
	req.NoError(p.Connect(ctx, laptop))

	req.Empty(bobCh.eventsOfType(t, TypeUserStatus))
	req.Empty(phone.eventsOfType(t, TypeUserStatus))
	req.Len(laptop.eventsOfType(t, TypeOnlineUsers), 1)
}

func TestPresence_DisconnectAnnouncesLastChannelOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	registry := NewRegistry()
	p := NewPresence(registry, newMemStore(alice, bob))

	bobCh := newFakeChannel("bob-1", bob)
	phone := newFakeChannel("alice-phone", alice)
	laptop := newFakeChannel("alice-laptop", alice)
	req.NoError(p.Connect(ctx, bobCh))
	req.NoError(p.Connect(ctx, phone))
	req.NoError(p.Connect(ctx, laptop))
	bobCh.reset()
	laptop.reset()

	req.Equal(StillOnline, p.Disconnect(phone))
	req.Empty(bobCh.eventsOfType(t, TypeUserStatus))

	req.Equal(WentOffline, p.Disconnect(laptop))
	req.Equal(NotRegistered, p.Disconnect(laptop))
	req.Equal(NotRegistered, p.Disconnect(phone))

	statuses := bobCh.eventsOfType(t, TypeUserStatus)
	req.Len(statuses, 1)
	req.Equal(UserStatusPayload{UserID: alice.ID, Status: StatusOffline},
		decodePayloadAs[UserStatusPayload](t, statuses[0]))

	req.Equal([]string{bob.ID}, registry.AllOnlineUserIDs())
}

func TestPresence_ConnectFailsClosedWhenStorageIsDown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	registry := NewRegistry()
	p := NewPresence(registry, store)

	// Given bob is already registered
	bobCh := newFakeChannel("bob-1", bob)
	registry.Register(bob.ID, bobCh)

	store.EXPECT().
		FindUser(gomock.Any(), bob.ID).
		Return(bob, errors.New("connection refused")).
		Times(1)

	// When alice connects while the store is down
	phone := newFakeChannel("alice-phone", alice)
	err := p.Connect(ctx, phone)

	// Then the connect fails, alice is not registered and nobody hears about her
	req.True(errs.HasCode(err, errs.ErrStorageUnavailable))
	req.False(registry.IsOnline(alice.ID))
	req.Empty(bobCh.events(t))
	req.Empty(phone.events(t))
}

func TestPresence_FullChannelDoesNotAffectOthers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	registry := NewRegistry()
	p := NewPresence(registry, newMemStore(alice, bob, carol))

	stuck := newFakeChannel("bob-stuck", bob)
	stuck.capacity = 1
	carolCh := newFakeChannel("carol-1", carol)
	req.NoError(p.Connect(ctx, stuck))
	req.NoError(p.Connect(ctx, carolCh))
	carolCh.reset()

	req.NoError(p.Connect(ctx, newFakeChannel("alice-1", alice)))

	req.Len(carolCh.eventsOfType(t, TypeUserStatus), 1)
	req.Len(stuck.events(t), 1, "only the original snapshot fits")
}
