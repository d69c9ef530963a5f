package editor

import (
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// ActionKind tags an EditAction.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
)

// EditAction is one reversible polygon mutation. Index is the vertex position
// the action inserted at or removed from.
type EditAction struct {
	Kind   ActionKind        `json:"kind"`
	Vertex geospatial.Vertex `json:"vertex"`
	Index  int               `json:"index"`
}

func (a EditAction) apply(p geospatial.Polygon) geospatial.Polygon {
	switch a.Kind {
	case ActionAdd:
		return insertAt(p, a.Index, a.Vertex)
	case ActionRemove:
		return removeAt(p, a.Index)
	}
	return p.Clone()
}

func (a EditAction) revert(p geospatial.Polygon) geospatial.Polygon {
	switch a.Kind {
	case ActionAdd:
		return removeAt(p, a.Index)
	case ActionRemove:
		return insertAt(p, a.Index, a.Vertex)
	}
	return p.Clone()
}

// History is a linear undo/redo log. Pushing a new action discards anything
// that could still have been redone.
type History struct {
	undo []EditAction
	redo []EditAction
}

func NewHistory() *History {
	return &History{}
}

// Push records a forward mutation and clears the redo stack.
func (h *History) Push(action EditAction) {
	h.undo = append(h.undo, action)
	h.redo = nil
}

// Undo reverts the most recent action against current and returns the
// resulting polygon. ok is false when there is nothing to undo.
func (h *History) Undo(current geospatial.Polygon) (geospatial.Polygon, bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	action := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, action)
	return action.revert(current), true
}

// Redo re-applies the most recently undone action.
func (h *History) Redo(current geospatial.Polygon) (geospatial.Polygon, bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	action := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, action)
	return action.apply(current), true
}

// Clear empties both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func insertAt(p geospatial.Polygon, index int, v geospatial.Vertex) geospatial.Polygon {
	if index < 0 {
		index = 0
	}
	if index > len(p) {
		index = len(p)
	}
	out := make(geospatial.Polygon, 0, len(p)+1)
	out = append(out, p[:index]...)
	out = append(out, v)
	return append(out, p[index:]...)
}

func removeAt(p geospatial.Polygon, index int) geospatial.Polygon {
	if index < 0 || index >= len(p) {
		return p.Clone()
	}
	out := make(geospatial.Polygon, 0, len(p)-1)
	out = append(out, p[:index]...)
	return append(out, p[index+1:]...)
}
