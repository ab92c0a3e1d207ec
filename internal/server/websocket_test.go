package server

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"inkwell/internal/notifications"
	"inkwell/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the test app on a loopback port and returns its address.
func (ts *testServer) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.ShutdownWithTimeout(time.Second) })
	return ln.Addr().String()
}

func dialWS(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws", header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocket_RegisterAndReceiveNotification(t *testing.T) {
	ts := newTestServer(t, nil)
	target := testutil.CreateUser(t, ts.db, "target")
	follower := testutil.CreateUser(t, ts.db, "follower")
	addr := ts.listen(t)

	conn := dialWS(t, addr, ts.token(t, target.ID))
	require.NoError(t, conn.WriteJSON(notifications.InboundFrame{Event: notifications.EventRegister, UserID: target.ID}))

	registered := readFrame(t, conn)
	assert.Equal(t, notifications.EventRegistered, registered["event"])
	assert.EqualValues(t, target.ID, registered["userId"])
	require.Eventually(t, func() bool { return ts.registry.IsOnline(target.ID) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(notifications.InboundFrame{Event: notifications.EventPing}))
	assert.Equal(t, notifications.EventPong, readFrame(t, conn)["event"])

	resp, err := http.Post(fmt.Sprintf("http://%s/api/users/%d/follow", addr, target.ID), "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/users/%d/follow", addr, target.ID), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, follower.ID))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frame := readFrame(t, conn)
	assert.Equal(t, notifications.EventNewNotification, frame["event"])
	data, ok := frame["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "follow", data["type"])
	assert.EqualValues(t, follower.ID, data["senderId"])
}

func TestWebSocket_RegisterMismatchIsRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	user := testutil.CreateUser(t, ts.db, "user")
	other := testutil.CreateUser(t, ts.db, "other")
	addr := ts.listen(t)

	conn := dialWS(t, addr, ts.token(t, user.ID))
	require.NoError(t, conn.WriteJSON(notifications.InboundFrame{Event: notifications.EventRegister, UserID: other.ID}))

	frame := readFrame(t, conn)
	assert.Equal(t, notifications.EventError, frame["event"])
	assert.False(t, ts.registry.IsOnline(other.ID))
	assert.False(t, ts.registry.IsOnline(user.ID))
}

func TestWebSocket_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	addr := ts.listen(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketUpgrade_PlainHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	user := testutil.CreateUser(t, ts.db, "user")
	assert.Equal(t, http.StatusUpgradeRequired,
		ts.call(t, http.MethodGet, "/api/ws", ts.token(t, user.ID), nil, nil))
}

func TestWebSocket_CloseAllSendsGoingAway(t *testing.T) {
	ts := newTestServer(t, nil)
	user := testutil.CreateUser(t, ts.db, "user")
	addr := ts.listen(t)

	conn := dialWS(t, addr, ts.token(t, user.ID))
	require.NoError(t, conn.WriteJSON(notifications.InboundFrame{Event: notifications.EventRegister, UserID: user.ID}))
	assert.Equal(t, notifications.EventRegistered, readFrame(t, conn)["event"])

	ts.registry.CloseAll()
	assert.False(t, ts.registry.IsOnline(user.ID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
