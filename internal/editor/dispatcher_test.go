package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordEditorEvent(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[kind+"/"+outcome]++
}

func startDispatcher(t *testing.T, opts ...Option) (*Dispatcher, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(New(units.Hectare), zap.NewNop(), opts...)
	go d.Run(ctx)
	t.Cleanup(cancel)
	return d, cancel
}

func TestDispatcherSerializesConcurrentSources(t *testing.T) {
	rec := &countingRecorder{}
	d, _ := startDispatcher(t, WithMetricsRecorder(rec))
	ctx := context.Background()

	_, err := d.Submit(ctx, DrawStart())
	require.NoError(t, err)

	const perSource = 50
	var wg sync.WaitGroup
	for src := 0; src < 2; src++ {
		wg.Add(1)
		go func(src int) {
			defer wg.Done()
			for i := 0; i < perSource; i++ {
				ev := VertexAppend(float64(src), float64(i))
				_, err := d.Submit(ctx, ev)
				assert.NoError(t, err)
			}
		}(src)
	}
	wg.Wait()

	snap, err := d.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Polygon, 2*perSource)

	// Each source's taps keep their relative order.
	next := map[float64]float64{0: 0, 1: 0}
	for _, v := range snap.Polygon {
		assert.Equal(t, next[v.Lat], v.Lng)
		next[v.Lat]++
	}

	rec.mu.Lock()
	assert.Equal(t, 2*perSource, rec.counts["vertex_append/ok"])
	rec.mu.Unlock()
}

func TestDispatcherSubmitFix(t *testing.T) {
	d, _ := startDispatcher(t)
	ctx := context.Background()

	_, err := d.SubmitFix(ctx, geospatial.Vertex{Lat: 1, Lng: 2})
	assert.ErrorIs(t, err, ErrNotDrawing)

	_, err = d.Submit(ctx, DrawStart())
	require.NoError(t, err)

	snap, err := d.SubmitFix(ctx, geospatial.Vertex{Lat: 1, Lng: 2})
	require.NoError(t, err)
	assert.Equal(t, geospatial.Polygon{{Lat: 1, Lng: 2}}, snap.Polygon)
}

func TestDispatcherRefusesOverlappingFix(t *testing.T) {
	d, _ := startDispatcher(t)
	d.fixBusy.Store(true)

	_, err := d.SubmitFix(context.Background(), geospatial.Vertex{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, ErrAppendInFlight)
	assert.True(t, IsRejection(err))
}

func TestDispatcherStopped(t *testing.T) {
	d, cancel := startDispatcher(t)
	cancel()
	<-d.Done()

	_, err := d.Submit(context.Background(), DrawStart())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcherCallerContext(t *testing.T) {
	d := NewDispatcher(New(units.Hectare), nil, WithQueueSize(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Submit(ctx, DrawStart())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcherSkipsAbandonedEvent(t *testing.T) {
	ed := New(units.Hectare)
	_, err := ed.Apply(DrawStart())
	require.NoError(t, err)

	rec := &countingRecorder{}
	d := NewDispatcher(ed, zap.NewNop(), WithMetricsRecorder(rec))

	// Queued before the run loop starts, so the caller gives up first.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Submit(ctx, VertexAppend(1, 1))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	runCtx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)
	go d.Run(runCtx)

	snap, err := d.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Polygon)
	assert.False(t, snap.CanUndo)

	rec.mu.Lock()
	assert.Equal(t, 1, rec.counts["vertex_append/abandoned"])
	assert.Zero(t, rec.counts["vertex_append/ok"])
	rec.mu.Unlock()

	// A retry is applied exactly once.
	snap, err = d.Submit(context.Background(), VertexAppend(1, 1))
	require.NoError(t, err)
	assert.Len(t, snap.Polygon, 1)
}
