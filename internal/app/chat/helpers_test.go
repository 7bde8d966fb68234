package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

// memStore is an in-memory Store with the same ordering rules as the SQL backends.
type memStore struct {
	mu       sync.Mutex
	users    map[string]user.User
	messages []message.Message
	seq      int
}

func newMemStore(users ...user.User) *memStore {
	s := &memStore{users: make(map[string]user.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) setColor(id, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[id]
	u.Color = color
	s.users[id] = u
}

func (s *memStore) SaveMessage(_ context.Context, content, senderID, receiverID, senderColor string) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := message.NewConversationKey(senderID, receiverID)
	createdAt := time.Now().UTC()
	for _, m := range s.messages {
		if m.Key() == key && m.CreatedAt.After(createdAt) {
			createdAt = m.CreatedAt
		}
	}

	s.seq++
	m := message.Message{
		ID:          fmt.Sprintf("m-%d", s.seq),
		Content:     content,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		CreatedAt:   createdAt,
		SenderColor: message.SenderColorOrLegacy(senderColor),
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) FindMessage(_ context.Context, id string) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return message.Message{}, message.ErrNotFound
}

func (s *memStore) FindConversation(_ context.Context, userA, userB string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := message.NewConversationKey(userA, userB)
	out := make([]message.Message, 0)
	for _, m := range s.messages {
		if m.Key() == key {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) FindUnread(_ context.Context, receiverID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]message.Message, 0)
	for i := len(s.messages) - 1; i >= 0; i-- {
		if m := s.messages[i]; m.ReceiverID == receiverID && !m.IsRead {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) FindReceived(_ context.Context, receiverID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]message.Message, 0)
	for i := len(s.messages) - 1; i >= 0; i-- {
		if m := s.messages[i]; m.ReceiverID == receiverID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) SetRead(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			if s.messages[i].IsRead {
				return false, nil
			}
			s.messages[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FindUser(_ context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// fakeChannel records queued frames in memory. A positive capacity makes Send fail once full.
type fakeChannel struct {
	id       string
	user     user.User
	capacity int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeChannel(id string, u user.User) *fakeChannel {
	return &fakeChannel{id: id, user: u}
}

func (c *fakeChannel) ID() string      { return c.id }
func (c *fakeChannel) User() user.User { return c.user }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return ErrSendQueueFull
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// testEvent is an outbound event with its payload left raw.
type testEvent struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

func (c *fakeChannel) events(t *testing.T) []testEvent {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]testEvent, 0, len(c.frames))
	for _, f := range c.frames {
		var e testEvent
		require.NoError(t, json.Unmarshal(f, &e))
		out = append(out, e)
	}
	return out
}

func (c *fakeChannel) eventsOfType(t *testing.T, typ EventType) []testEvent {
	t.Helper()

	var out []testEvent
	for _, e := range c.events(t) {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func decodePayloadAs[T any](t *testing.T, e testEvent) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(e.Payload, &v))
	return v
}

var (
	alice = user.User{ID: "u-alice", Name: "alice", Color: "#e74c3c"}
	bob   = user.User{ID: "u-bob", Name: "bob", Color: "#2ecc71"}
	carol = user.User{ID: "u-carol", Name: "carol", Color: "#9b59b6"}
)
