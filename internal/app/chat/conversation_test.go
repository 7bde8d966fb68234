package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/internal/app/chat/mocks"
	"duochat/internal/app/message"
	"duochat/internal/pkg/errs"
)

// Alice and Bob exchange "hi"; Bob reads it, Alice may not mark it, Bob's second receipt is a no-op.
func TestConversations_HiScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := newMemStore(alice, bob)
	registry := NewRegistry()
	router := NewRouter(store, registry, testMaxContent)
	conversations := NewConversations(store)

	aliceCh := newFakeChannel("alice-1", alice)
	bobCh := newFakeChannel("bob-1", bob)
	registry.Register(alice.ID, aliceCh)
	registry.Register(bob.ID, bobCh)

	hi, err := router.Send(ctx, aliceCh, alice.ID, bob.ID, "hi", "")
	req.NoError(err)

	delivered := bobCh.eventsOfType(t, TypeNewMessage)
	req.Len(delivered, 1)
	req.Equal(hi.ID, decodePayloadAs[NewMessagePayload](t, delivered[0]).ID)

	fromAlice, err := conversations.GetConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)
	fromBob, err := conversations.GetConversation(ctx, bob.ID, alice.ID)
	req.NoError(err)
	req.Equal(fromAlice, fromBob)
	req.Len(fromAlice, 1)

	_, err = conversations.MarkRead(ctx, hi.ID, alice.ID)
	req.True(errs.HasCode(err, errs.ErrNotMessageReceiver))

	stillUnread, err := conversations.GetUnreadForUser(ctx, bob.ID)
	req.NoError(err)
	req.Len(stillUnread, 1)

	read, err := conversations.MarkRead(ctx, hi.ID, bob.ID)
	req.NoError(err)
	req.True(read.IsRead)

	again, err := conversations.MarkRead(ctx, hi.ID, bob.ID)
	req.NoError(err)
	req.True(again.IsRead)

	stored, err := store.FindMessage(ctx, hi.ID)
	req.NoError(err)
	req.True(stored.IsRead)
}

func TestConversations_UnreadNewestFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := newMemStore(alice, bob, carol)
	router := NewRouter(store, NewRegistry(), testMaxContent)
	conversations := NewConversations(store)

	first, err := router.Send(ctx, nil, alice.ID, bob.ID, "one", "")
	req.NoError(err)
	second, err := router.Send(ctx, nil, carol.ID, bob.ID, "two", "")
	req.NoError(err)
	_, err = router.Send(ctx, nil, bob.ID, alice.ID, "not for bob", "")
	req.NoError(err)

	unread, err := conversations.GetUnreadForUser(ctx, bob.ID)
	req.NoError(err)
	req.Len(unread, 2)
	req.Equal(second.ID, unread[0].ID)
	req.Equal(first.ID, unread[1].ID)
}

func TestConversations_ReceivedIncludesRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := newMemStore(alice, bob, carol)
	router := NewRouter(store, NewRegistry(), testMaxContent)
	conversations := NewConversations(store)

	first, err := router.Send(ctx, nil, alice.ID, bob.ID, "one", "")
	req.NoError(err)
	second, err := router.Send(ctx, nil, carol.ID, bob.ID, "two", "")
	req.NoError(err)
	_, err = router.Send(ctx, nil, bob.ID, alice.ID, "not for bob", "")
	req.NoError(err)

	_, err = conversations.MarkRead(ctx, first.ID, bob.ID)
	req.NoError(err)

	received, err := conversations.GetReceivedForUser(ctx, bob.ID)
	req.NoError(err)
	req.Len(received, 2)
	req.Equal(second.ID, received[0].ID)
	req.Equal(first.ID, received[1].ID)
	req.True(received[1].IsRead)
}

func TestConversations_MarkReadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown message", func(t *testing.T) {
		conversations := NewConversations(newMemStore(alice, bob))

		_, err := conversations.MarkRead(ctx, "m-missing", bob.ID)
		require.True(t, errs.HasCode(err, errs.ErrMessageNotFound))
	})

	t.Run("already read does not touch storage", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		conversations := NewConversations(store)

		read := message.Message{ID: "m-1", SenderID: alice.ID, ReceiverID: bob.ID, IsRead: true}
		store.EXPECT().FindMessage(gomock.Any(), "m-1").Return(read, nil)
		store.EXPECT().SetRead(gomock.Any(), gomock.Any()).Times(0)

		got, err := conversations.MarkRead(ctx, "m-1", bob.ID)
		req.NoError(err)
		req.Equal(read, got)
	})

	t.Run("storage down", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		conversations := NewConversations(store)

		unread := message.Message{ID: "m-1", SenderID: alice.ID, ReceiverID: bob.ID}
		store.EXPECT().FindMessage(gomock.Any(), "m-1").Return(unread, nil)
		store.EXPECT().SetRead(gomock.Any(), "m-1").Return(false, errors.New("connection reset"))

		_, err := conversations.MarkRead(ctx, "m-1", bob.ID)
		req.True(errs.HasCode(err, errs.ErrStorageUnavailable))
	})

	t.Run("history query fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		conversations := NewConversations(store)

		store.EXPECT().FindConversation(gomock.Any(), alice.ID, bob.ID).Return(nil, errors.New("boom"))
		store.EXPECT().FindUnread(gomock.Any(), bob.ID).Return(nil, errors.New("boom"))
		store.EXPECT().FindReceived(gomock.Any(), bob.ID).Return(nil, errors.New("boom"))

		_, err := conversations.GetConversation(ctx, alice.ID, bob.ID)
		req.True(errs.HasCode(err, errs.ErrStorageUnavailable))

		_, err = conversations.GetUnreadForUser(ctx, bob.ID)
		req.True(errs.HasCode(err, errs.ErrStorageUnavailable))

		_, err = conversations.GetReceivedForUser(ctx, bob.ID)
		req.True(errs.HasCode(err, errs.ErrStorageUnavailable))
	})
}
