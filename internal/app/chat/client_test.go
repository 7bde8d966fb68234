package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
)

func startWSServer(t *testing.T, hub *Hub, users ...user.User) *httptest.Server {
	t.Helper()

	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := byID[r.URL.Query().Get("uid")]
		if !ok {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := NewClient(hub, conn, u)
		if err := hub.Connect(r.Context(), client); err != nil {
			client.Reject(err)
			return
		}

		go client.WritePump()
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return srv
}

func dialAs(t *testing.T, srv *httptest.Server, u user.User) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?uid=" + u.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) testEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e testEvent
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func writeEvent(t *testing.T, conn *websocket.Conn, typ EventType, requestID string, payload any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(Event{Type: typ, RequestID: requestID, Payload: payload}))
}

func TestClient_EndToEnd(t *testing.T) {
	req := require.New(t)

	store := newMemStore(alice, bob)
	hub := NewHub(store, Options{MaxContentBytes: testMaxContent, SendBuffer: 16})
	srv := startWSServer(t, hub, alice, bob)

	// alice connects to an empty server
	aliceConn := dialAs(t, srv, alice)
	snapshot := readEvent(t, aliceConn)
	req.Equal(TypeOnlineUsers, snapshot.Type)
	req.Empty(decodePayloadAs[[]OnlineUser](t, snapshot))

	// bob connects: he sees alice, alice sees him come online
	bobConn := dialAs(t, srv, bob)
	snapshot = readEvent(t, bobConn)
	req.Equal(TypeOnlineUsers, snapshot.Type)
	req.Equal([]OnlineUser{onlineUserOf(alice)}, decodePayloadAs[[]OnlineUser](t, snapshot))

	status := readEvent(t, aliceConn)
	req.Equal(TypeUserStatus, status.Type)
	req.Equal(StatusOnline, decodePayloadAs[UserStatusPayload](t, status).Status)

	// alice says hi
	writeEvent(t, aliceConn, TypeSendMessage, "r-1", SendMessagePayload{Content: "hi", ReceiverID: bob.ID})

	result := readEvent(t, aliceConn)
	req.Equal(TypeResult, result.Type)
	req.Equal("r-1", result.RequestID)

	delivered := readEvent(t, bobConn)
	req.Equal(TypeNewMessage, delivered.Type)
	msg := decodePayloadAs[NewMessagePayload](t, delivered)
	req.Equal("hi", msg.Content)
	req.Equal(alice.Name, msg.Sender.Name)

	// bob reads it
	writeEvent(t, bobConn, TypeMarkRead, "r-2", MarkReadPayload{MessageID: msg.ID})
	result = readEvent(t, bobConn)
	req.Equal(TypeResult, result.Type)
	req.True(decodePayloadAs[NewMessagePayload](t, result).IsRead)

	// alice may not
	writeEvent(t, aliceConn, TypeMarkRead, "r-3", MarkReadPayload{MessageID: msg.ID})
	failure := readEvent(t, aliceConn)
	req.Equal(TypeError, failure.Type)
	req.Equal("r-3", failure.RequestID)
	req.Equal(errs.ErrNotMessageReceiver, decodePayloadAs[ErrorPayload](t, failure).Code)

	// bob leaves: alice sees exactly one offline event
	req.NoError(bobConn.Close())
	status = readEvent(t, aliceConn)
	req.Equal(TypeUserStatus, status.Type)
	req.Equal(UserStatusPayload{UserID: bob.ID, Status: StatusOffline}, decodePayloadAs[UserStatusPayload](t, status))

	req.Eventually(func() bool { return !hub.Registry().IsOnline(bob.ID) }, 2*time.Second, 10*time.Millisecond)

	// shutdown closes alice's connection from the server side
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(hub.Shutdown(ctx))

	req.NoError(aliceConn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := aliceConn.ReadMessage()
	req.Error(err)
}

func TestClient_RejectsBadEvents(t *testing.T) {
	req := require.New(t)

	hub := NewHub(newMemStore(alice, bob), Options{MaxContentBytes: testMaxContent, SendBuffer: 16})
	srv := startWSServer(t, hub, alice)

	conn := dialAs(t, srv, alice)
	readEvent(t, conn)

	writeEvent(t, conn, "shout", "r-1", nil)
	e := readEvent(t, conn)
	req.Equal(TypeError, e.Type)
	req.Equal(errs.ErrUnsupportedEvent, decodePayloadAs[ErrorPayload](t, e).Code)

	writeEvent(t, conn, TypeSendMessage, "r-2", map[string]string{"content": "hi"})
	e = readEvent(t, conn)
	req.Equal(TypeError, e.Type)
	req.Equal(errs.ErrInvalidParams, decodePayloadAs[ErrorPayload](t, e).Code)

	writeEvent(t, conn, TypeSendMessage, "r-3", SendMessagePayload{Content: "   ", ReceiverID: bob.ID})
	e = readEvent(t, conn)
	req.Equal(errs.ErrMessageContentEmpty, decodePayloadAs[ErrorPayload](t, e).Code)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e = readEvent(t, conn)
	req.Equal(errs.ErrInvalidJSONFormat, decodePayloadAs[ErrorPayload](t, e).Code)

	writeEvent(t, conn, TypeGetUnread, "r-4", nil)
	e = readEvent(t, conn)
	req.Equal(TypeResult, e.Type)
	req.Equal("r-4", e.RequestID)
}
