package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversEventsToUserSubscribers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(r.URL.Query().Get("user"), w, r)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	alice, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=alice", nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=bob", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers("alice") == 1 && hub.Subscribers("bob") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("alice", Event{Event: EventCreated, NotificationID: "n-1"})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received Event
	require.NoError(t, alice.ReadJSON(&received))
	require.Equal(t, EventCreated, received.Event)
	require.Equal(t, "n-1", received.NotificationID)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var unexpected Event
	require.Error(t, bob.ReadJSON(&unexpected))
}

func TestHubRemovesClosedSubscribers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve("carol", w, r)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Subscribers("carol") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("carol") == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastOnNilHubIsNoop(t *testing.T) {
	var hub *Hub
	require.NotPanics(t, func() {
		hub.Broadcast("anyone", Event{Event: EventReadAll})
	})
	require.Zero(t, hub.Subscribers("anyone"))
}

func TestSameOriginOrLoopback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://intro.example.com/api/notifications/stream", nil)
	require.True(t, sameOriginOrLoopback(req))

	req.Header.Set("Origin", "https://intro.example.com")
	require.True(t, sameOriginOrLoopback(req))

	req.Header.Set("Origin", "http://localhost:5173")
	require.True(t, sameOriginOrLoopback(req))

	req.Header.Set("Origin", "https://evil.example.net")
	require.False(t, sameOriginOrLoopback(req))
}
