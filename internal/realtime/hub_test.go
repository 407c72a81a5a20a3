package realtime

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, hub *Hub, trackerID string, initial any) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, trackerID, initial)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	return string(msg)
}

func TestHubBroadcastsToTrackerSubscribers(t *testing.T) {
	hub := NewHub("*")
	conn := dial(t, hub, "t-1", map[string]int{"score": 100})
	require.JSONEq(t, `{"score":100}`, readText(t, conn))

	require.Eventually(t, func() bool { return hub.Subscribers("t-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("t-2", map[string]int{"score": 1})
	hub.Broadcast("t-1", map[string]int{"score": 93})
	require.JSONEq(t, `{"score":93}`, readText(t, conn))
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub("")
	conn := dial(t, hub, "t-1", nil)
	require.Eventually(t, func() bool { return hub.Subscribers("t-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Close("t-1")
	require.Zero(t, hub.Subscribers("t-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub("https://eco.example")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, "t-1", nil)
	}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Zero(t, hub.Subscribers("t-1"))
}

func TestHubInitialMessagePrecedesBroadcasts(t *testing.T) {
	hub := NewHub("")
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.Broadcast("t-1", map[string]int{"score": 93})
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	conn := dial(t, hub, "t-1", map[string]int{"score": 100})
	require.JSONEq(t, `{"score":100}`, readText(t, conn))
}

func TestHubCloseRacingSubscribe(t *testing.T) {
	hub := NewHub("")
	var panicked atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				panicked.Store(true)
			}
		}()
		_ = hub.Subscribe(w, r, "t-1", map[string]int{"score": 100})
	}))
	defer srv.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.Close("t-1")
				runtime.Gosched()
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	for range 50 {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		_ = conn.Close()
	}
	close(stop)
	<-done

	require.False(t, panicked.Load())
}
