package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server, chan *Client) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, logger.NewTestLogger(t))
	go hub.Run(ctx)

	clients := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := hub.Serve(w, r, r.URL.Query().Get("user"))
		if err == nil {
			clients <- c
		}
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv, clients
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_ScheduleReachesOnlyThatUser(t *testing.T) {
	hub, srv, _ := startHub(t)
	mara := dial(t, srv, "reader-1")
	dial(t, srv, "reader-2")
	require.Eventually(t, func() bool { return hub.Connected("reader-1") == 1 && hub.Connected("reader-2") == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Schedule(context.Background(), channels.LocalNotification{
		ID:       "n-1",
		UserID:   "reader-1",
		Category: models.CategoryNewFollower,
		Title:    "New follower",
	}))

	ev := readEvent(t, mara)
	assert.Equal(t, EventScheduled, ev.Type)
	var n channels.LocalNotification
	require.NoError(t, json.Unmarshal(ev.Payload, &n))
	assert.Equal(t, "n-1", n.ID)
}

func TestHub_NavigateAndCancel(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "reader-1")
	require.Eventually(t, func() bool { return hub.Connected("reader-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Navigate(context.Background(), "reader-1", "/clubs/7", map[string]string{"notificationId": "n-1"}))
	require.NoError(t, hub.Cancel(context.Background(), "reader-1", "n-1"))

	nav := readEvent(t, conn)
	assert.Equal(t, EventNavigate, nav.Type)
	assert.JSONEq(t, `{"destination":"/clubs/7","params":{"notificationId":"n-1"}}`, string(nav.Payload))

	cancelled := readEvent(t, conn)
	assert.Equal(t, EventCancelled, cancelled.Type)
	assert.JSONEq(t, `{"notificationId":"n-1"}`, string(cancelled.Payload))
}

func TestHub_InteractionsFromClient(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "reader-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    EventInteraction,
		"payload": map[string]string{"notificationId": "n-1", "actionId": "view"},
	}))

	select {
	case in := <-hub.Interactions():
		assert.Equal(t, channels.Interaction{UserID: "reader-1", NotificationID: "n-1", ActionID: "view"}, in)
	case <-time.After(2 * time.Second):
		t.Fatal("interaction not received")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, srv, clients := startHub(t)
	conn := dial(t, srv, "reader-1")
	c := <-clients

	conn.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client was not unregistered")
	}
	assert.Zero(t, hub.Connected("reader-1"))
	// sends to a user without clients are dropped silently
	hub.SendToUser("reader-1", Event{Type: EventCounts})
}

func TestForward(t *testing.T) {
	hub, srv, clients := startHub(t)
	conn := dial(t, srv, "reader-1")
	c := <-clients
	require.Eventually(t, func() bool { return hub.Connected("reader-1") == 1 }, time.Second, 10*time.Millisecond)

	src := make(chan models.InboxCounts, 1)
	src <- models.InboxCounts{Total: 2, Unread: 1}
	close(src)
	Forward(hub, c, EventCounts, src)

	ev := readEvent(t, conn)
	assert.Equal(t, EventCounts, ev.Type)
	assert.JSONEq(t, `{"total":2,"unread":1,"byCategory":null}`, string(ev.Payload))
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker([]string{"*"})
	assert.True(t, open(req("https://evil.example")))

	strict := originChecker([]string{"https://bookverse.app"})
	assert.True(t, strict(req("https://bookverse.app")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))

	assert.True(t, originChecker(nil)(req("https://anywhere.example")))
}
