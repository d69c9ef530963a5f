package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/editor"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

type fakeMetrics struct {
	mu       sync.Mutex
	sessions int
	events   map[string]int
}

func (f *fakeMetrics) RecordEditorEvent(kind, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = map[string]int{}
	}
	f.events[kind+"/"+outcome]++
}

func (f *fakeMetrics) SetActiveSessions(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = n
}

func (f *fakeMetrics) activeSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, metrics MetricsRecorder) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	r := NewRegistry(RegistryConfig{IdleTTL: 30 * time.Minute}, nil, metrics)
	r.now = clock.Now
	t.Cleanup(r.Stop)
	return r, clock
}

func TestRegistryCreateGetDelete(t *testing.T) {
	metrics := &fakeMetrics{}
	r, _ := newTestRegistry(t, metrics)

	s := r.Create("")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, metrics.activeSessions())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	snap, err := got.Dispatcher().Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, units.Hectare, snap.Unit)
	assert.Equal(t, editor.ModeIdle, snap.Mode)

	require.NoError(t, r.Delete(s.ID))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, metrics.activeSessions())

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(s.ID), ErrSessionNotFound)

	_, err = s.Dispatcher().Submit(context.Background(), editor.DrawStart())
	assert.ErrorIs(t, err, editor.ErrStopped)
}

func TestRegistryCreateWithUnit(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	s := r.Create(units.Acre)
	snap, err := s.Dispatcher().Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, units.Acre, snap.Unit)
}

func TestRegistryMetricsSeeEditorEvents(t *testing.T) {
	metrics := &fakeMetrics{}
	r, _ := newTestRegistry(t, metrics)

	s := r.Create("")
	_, err := s.Dispatcher().Submit(context.Background(), editor.VertexAppend(1, 1))
	assert.ErrorIs(t, err, editor.ErrNotDrawing)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 1, metrics.events["vertex_append/rejected"])
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	metrics := &fakeMetrics{}
	r, clock := newTestRegistry(t, metrics)

	stale := r.Create("")
	clock.Advance(20 * time.Minute)
	fresh := r.Create("")
	streaming := r.Create("")
	require.True(t, streaming.attachGPS())

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, r.Sweep())

	_, err := r.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = r.Get(streaming.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, metrics.activeSessions())

	select {
	case <-stale.Dispatcher().Done():
	case <-time.After(time.Second):
		t.Fatal("evicted session dispatcher still running")
	}
}

func TestRegistryGetRefreshesActivity(t *testing.T) {
	r, clock := newTestRegistry(t, nil)

	s := r.Create("")
	clock.Advance(25 * time.Minute)
	_, err := r.Get(s.ID)
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	assert.Equal(t, 0, r.Sweep())
}

func TestRegistryStartRejectsBadSchedule(t *testing.T) {
	r := NewRegistry(RegistryConfig{SweepSpec: "every now and then"}, nil, nil)
	assert.Error(t, r.Start())
}

func TestRegistryStartStop(t *testing.T) {
	r := NewRegistry(RegistryConfig{SweepSpec: "@every 1h"}, nil, nil)
	require.NoError(t, r.Start())
	assert.Error(t, r.Start())

	s := r.Create("")
	r.Stop()

	assert.Equal(t, 0, r.Len())
	_, err := r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
