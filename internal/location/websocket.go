package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types exchanged on the GPS websocket.
const (
	MessageTypeFix      = "fix"
	MessageTypeError    = "error"
	MessageTypeSnapshot = "snapshot"
	MessageTypeRejected = "rejected"
)

const (
	readLimit = 4096
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

// Message is the JSON envelope used in both directions.
type Message struct {
	Type    string      `json:"type"`
	Fix     *Fix        `json:"fix,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WebSocketSource reads fixes sent by a device over a websocket and lets the
// server push replies back on the same connection.
type WebSocketSource struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	pongWait time.Duration
}

// SourceOption configures a WebSocketSource.
type SourceOption func(*WebSocketSource)

// WithPongWait sets how long the connection may stay silent, pongs included,
// before reads fail.
func WithPongWait(d time.Duration) SourceOption {
	return func(s *WebSocketSource) {
		if d > 0 {
			s.pongWait = d
		}
	}
}

// NewWebSocketSource takes ownership of conn.
func NewWebSocketSource(conn *websocket.Conn, opts ...SourceOption) *WebSocketSource {
	s := &WebSocketSource{conn: conn, pongWait: pongWait}
	for _, opt := range opts {
		opt(s)
	}

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	return s
}

// KeepAlive pings the device until ctx is done or a ping cannot be written.
// A device that is alive but idle answers with pongs, which keeps the read
// deadline moving.
func (s *WebSocketSource) KeepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Next blocks for the next device message. Closing ctx closes the
// connection so a pending read returns.
func (s *WebSocketSource) Next(ctx context.Context) (Fix, error) {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Fix{}, ErrStreamClosed
			}
			return Fix{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
		}
		s.conn.SetReadDeadline(time.Now().Add(s.pongWait))

		switch msg.Type {
		case MessageTypeFix:
			if msg.Fix == nil {
				return Fix{}, &FixError{Code: "malformed", Message: "fix message without position"}
			}
			fix := *msg.Fix
			if fix.Timestamp.IsZero() {
				fix.Timestamp = time.Now().UTC()
			}
			return fix, nil
		case MessageTypeError:
			return Fix{}, &FixError{Code: msg.Code, Message: msg.Message}
		}
	}
}

// Send writes a reply to the device.
func (s *WebSocketSource) Send(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// Close sends a close frame and releases the connection.
func (s *WebSocketSource) Close() error {
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
