// Package session keeps in-memory polygon editing sessions and exposes them
// over HTTP and a GPS websocket.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/editor"
)

// Session is one editor with its own dispatcher goroutine.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	dispatcher  *editor.Dispatcher
	ctx         context.Context
	cancel      context.CancelFunc
	lastActive  atomic.Int64
	gpsAttached atomic.Bool
}

func newSession(id uuid.UUID, d *editor.Dispatcher, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		dispatcher: d,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.touch(now)
	go d.Run(ctx)
	return s
}

// Dispatcher is the only way to read or change the session's polygon.
func (s *Session) Dispatcher() *editor.Dispatcher {
	return s.dispatcher
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// LastActive is the time of the last request that touched the session.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// attachGPS claims the session's single GPS stream slot.
func (s *Session) attachGPS() bool {
	return s.gpsAttached.CompareAndSwap(false, true)
}

func (s *Session) detachGPS() {
	s.gpsAttached.Store(false)
}

func (s *Session) close() {
	s.cancel()
	<-s.dispatcher.Done()
}
