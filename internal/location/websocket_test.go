package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketSource(t *testing.T) {
	type outcome struct {
		fixes []Fix
		errs  []error
	}
	results := make(chan outcome, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		src := NewWebSocketSource(conn)
		defer src.Close()

		var out outcome
		for {
			fix, err := src.Next(context.Background())
			if err == ErrStreamClosed {
				break
			}
			if err != nil {
				out.errs = append(out.errs, err)
				if _, ok := err.(*FixError); !ok {
					break
				}
				continue
			}
			out.fixes = append(out.fixes, fix)
			_ = src.Send(Message{Type: MessageTypeSnapshot, Data: map[string]int{"vertices": len(out.fixes)}})
		}
		results <- out
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeFix, Fix: &Fix{Lat: 45.1, Lng: 7.6, AccuracyMeters: 4}}))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageTypeSnapshot, reply.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeError, Code: "denied", Message: "permission denied"}))
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case out := <-results:
		require.Len(t, out.fixes, 1)
		assert.Equal(t, 45.1, out.fixes[0].Lat)
		assert.False(t, out.fixes[0].Timestamp.IsZero())
		require.Len(t, out.errs, 1)
		assert.ErrorIs(t, out.errs[0], ErrLocationUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not finish")
	}
	conn.Close()
}

func TestWebSocketSourceKeepAlive(t *testing.T) {
	const wait = 200 * time.Millisecond
	fixes := make(chan Fix, 1)
	errs := make(chan error, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		src := NewWebSocketSource(conn, WithPongWait(wait))
		defer src.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go src.KeepAlive(ctx)

		fix, err := src.Next(ctx)
		if err != nil {
			errs <- err
			return
		}
		fixes <- fix
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The read loop answers pings.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(5 * wait)
	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeFix, Fix: &Fix{Lat: 3, Lng: 4, AccuracyMeters: 2}}))

	select {
	case fix := <-fixes:
		assert.Equal(t, 3.0, fix.Lat)
	case err := <-errs:
		t.Fatalf("idle stream was cut: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive the fix")
	}
}
