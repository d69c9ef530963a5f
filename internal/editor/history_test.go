package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

func TestHistoryUndoRedoAdd(t *testing.T) {
	h := NewHistory()
	before := geospatial.Polygon{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}
	v := geospatial.Vertex{Lat: 3, Lng: 3}

	action := EditAction{Kind: ActionAdd, Vertex: v, Index: len(before)}
	after := action.apply(before)
	h.Push(action)

	undone, ok := h.Undo(after)
	assert.True(t, ok)
	assert.Equal(t, before, undone)
	assert.True(t, h.CanRedo())

	redone, ok := h.Redo(undone)
	assert.True(t, ok)
	assert.Equal(t, after, redone)
	assert.False(t, h.CanRedo())
}

func TestHistoryUndoRemoveReinsertsAtIndex(t *testing.T) {
	h := NewHistory()
	before := geospatial.Polygon{{Lat: 1}, {Lat: 2}, {Lat: 3}}

	action := EditAction{Kind: ActionRemove, Vertex: before[1], Index: 1}
	after := action.apply(before)
	assert.Equal(t, geospatial.Polygon{{Lat: 1}, {Lat: 3}}, after)
	h.Push(action)

	undone, ok := h.Undo(after)
	assert.True(t, ok)
	assert.Equal(t, before, undone)
}

func TestHistoryPushClearsRedo(t *testing.T) {
	h := NewHistory()
	p := geospatial.Polygon{}

	for i := 0; i < 3; i++ {
		a := EditAction{Kind: ActionAdd, Vertex: geospatial.Vertex{Lat: float64(i)}, Index: len(p)}
		p = a.apply(p)
		h.Push(a)
	}

	p, _ = h.Undo(p)
	p, _ = h.Undo(p)
	assert.True(t, h.CanRedo())

	a := EditAction{Kind: ActionAdd, Vertex: geospatial.Vertex{Lat: 9}, Index: len(p)}
	p = a.apply(p)
	h.Push(a)

	assert.False(t, h.CanRedo())
	same, ok := h.Redo(p)
	assert.False(t, ok)
	assert.Equal(t, p, same)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory()
	p := geospatial.Polygon{{Lat: 1}}

	got, ok := h.Undo(p)
	assert.False(t, ok)
	assert.Equal(t, p, got)

	got, ok = h.Redo(p)
	assert.False(t, ok)
	assert.Equal(t, p, got)
}

func TestHistoryIsLinearLog(t *testing.T) {
	h := NewHistory()
	p := geospatial.Polygon{}
	states := []geospatial.Polygon{p.Clone()}

	for i := 0; i < 5; i++ {
		a := EditAction{Kind: ActionAdd, Vertex: geospatial.Vertex{Lat: float64(i), Lng: float64(-i)}, Index: len(p)}
		p = a.apply(p)
		h.Push(a)
		states = append(states, p.Clone())
	}
	rm := EditAction{Kind: ActionRemove, Vertex: p[2], Index: 2}
	p = rm.apply(p)
	h.Push(rm)
	states = append(states, p.Clone())

	// Any walk bounded by the push count lands on a recorded state.
	pos := len(states) - 1
	for _, step := range []int{-1, -1, -1, +1, -1, -1, +1, +1, +1, +1, -1} {
		var ok bool
		if step < 0 {
			p, ok = h.Undo(p)
		} else {
			p, ok = h.Redo(p)
		}
		assert.True(t, ok)
		pos += step
		assert.Equal(t, states[pos], p)
	}

	h.Clear()
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}
