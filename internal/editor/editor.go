// Package editor owns the active parcel polygon. All mutations enter through
// Editor.Apply; the Dispatcher serializes concurrent input sources onto it.
package editor

import (
	"errors"
	"fmt"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/workflows"
)

// Mode is the drawing state of the editor.
type Mode = workflows.State

const (
	ModeIdle    Mode = "idle"
	ModeDrawing Mode = "drawing"
)

var (
	ErrNotDrawing     = errors.New("editor is not in drawing mode")
	ErrVertexIndex    = errors.New("vertex index out of range")
	ErrUnknownEvent   = errors.New("unknown editor event")
	ErrAppendInFlight = errors.New("a location append is still being applied")
	ErrStopped        = errors.New("editor dispatcher stopped")
)

var modes = workflows.NewStateMachine(map[workflows.State][]workflows.State{
	ModeIdle:    {ModeDrawing},
	ModeDrawing: {ModeIdle},
})

// Snapshot is an immutable view of the editor after an event was applied.
type Snapshot struct {
	Mode            Mode                  `json:"mode"`
	Polygon         geospatial.Polygon    `json:"polygon"`
	AreaSqMeters    float64               `json:"area_sq_meters"`
	PerimeterMeters float64               `json:"perimeter_meters"`
	Unit            units.MeasurementUnit `json:"unit"`
	DisplayValue    float64               `json:"display_value"`
	DisplayDecimals int                   `json:"display_decimals"`
	DisplayText     string                `json:"display_text"`
	CanUndo         bool                  `json:"can_undo"`
	CanRedo         bool                  `json:"can_redo"`
}

// Editor is the drawing state machine. It is not safe for concurrent use;
// run it behind a Dispatcher.
type Editor struct {
	mode    Mode
	polygon geospatial.Polygon
	history *History
	unit    units.MeasurementUnit

	area      float64
	perimeter float64
}

// New creates an idle editor with an empty polygon.
func New(unit units.MeasurementUnit) *Editor {
	if _, ok := units.Info(unit); !ok {
		unit = units.Hectare
	}
	return &Editor{
		mode:    ModeIdle,
		polygon: geospatial.Polygon{},
		history: NewHistory(),
		unit:    unit,
	}
}

// Apply performs one event and returns the resulting snapshot. On error the
// polygon and history are left untouched.
func (e *Editor) Apply(ev Event) (Snapshot, error) {
	switch ev.Kind {
	case EventDrawStart:
		if e.mode != ModeDrawing {
			next, err := modes.Transition(e.mode, ModeDrawing)
			if err != nil {
				return e.Snapshot(), err
			}
			e.mode = next
		}

	case EventDrawStop:
		if e.mode != ModeIdle {
			next, err := modes.Transition(e.mode, ModeIdle)
			if err != nil {
				return e.Snapshot(), err
			}
			e.mode = next
		}

	case EventVertexAppend:
		if e.mode != ModeDrawing {
			return e.Snapshot(), ErrNotDrawing
		}
		action := EditAction{Kind: ActionAdd, Vertex: ev.Vertex, Index: len(e.polygon)}
		e.commit(action.apply(e.polygon))
		e.history.Push(action)

	case EventVertexRemove:
		if ev.Index < 0 || ev.Index >= len(e.polygon) {
			return e.Snapshot(), fmt.Errorf("%w: %d of %d", ErrVertexIndex, ev.Index, len(e.polygon))
		}
		action := EditAction{Kind: ActionRemove, Vertex: e.polygon[ev.Index], Index: ev.Index}
		e.commit(action.apply(e.polygon))
		e.history.Push(action)

	case EventUndo:
		if p, ok := e.history.Undo(e.polygon); ok {
			e.commit(p)
		}

	case EventRedo:
		if p, ok := e.history.Redo(e.polygon); ok {
			e.commit(p)
		}

	case EventClear:
		e.commit(geospatial.Polygon{})
		e.history.Clear()

	case EventSetUnit:
		if _, ok := units.Info(ev.Unit); !ok {
			return e.Snapshot(), fmt.Errorf("%w: %q", units.ErrUnknownUnit, ev.Unit)
		}
		e.unit = ev.Unit

	default:
		return e.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	return e.Snapshot(), nil
}

// commit installs p as the active polygon and recomputes the derived area.
func (e *Editor) commit(p geospatial.Polygon) {
	e.polygon = p
	e.area = geospatial.Area(p)
	e.perimeter = 0
	if p.IsClosable() {
		e.perimeter = geospatial.Perimeter(p)
	}
}

// Mode returns the current drawing mode.
func (e *Editor) Mode() Mode {
	return e.mode
}

// Snapshot returns a copy of the current state.
func (e *Editor) Snapshot() Snapshot {
	value, decimals := units.ToDisplay(e.area, e.unit)
	return Snapshot{
		Mode:            e.mode,
		Polygon:         e.polygon.Clone(),
		AreaSqMeters:    e.area,
		PerimeterMeters: e.perimeter,
		Unit:            e.unit,
		DisplayValue:    value,
		DisplayDecimals: decimals,
		DisplayText:     units.Format(e.area, e.unit),
		CanUndo:         e.history.CanUndo(),
		CanRedo:         e.history.CanRedo(),
	}
}
