package editor

import (
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

// EventKind names an input the editor understands.
type EventKind string

const (
	EventDrawStart    EventKind = "draw_start"
	EventDrawStop     EventKind = "draw_stop"
	EventVertexAppend EventKind = "vertex_append"
	EventVertexRemove EventKind = "vertex_remove"
	EventUndo         EventKind = "undo"
	EventRedo         EventKind = "redo"
	EventClear        EventKind = "clear"
	EventSetUnit      EventKind = "set_unit"
)

// Source tells where a vertex came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceGPS    Source = "gps"
)

// Event is the single message type fed into the editor. Only the fields
// relevant to Kind are read.
type Event struct {
	Kind   EventKind             `json:"type"`
	Vertex geospatial.Vertex     `json:"vertex"`
	Index  int                   `json:"index"`
	Unit   units.MeasurementUnit `json:"unit,omitempty"`
	Source Source                `json:"source,omitempty"`
}

func DrawStart() Event { return Event{Kind: EventDrawStart} }
func DrawStop() Event  { return Event{Kind: EventDrawStop} }
func Undo() Event      { return Event{Kind: EventUndo} }
func Redo() Event      { return Event{Kind: EventRedo} }
func Clear() Event     { return Event{Kind: EventClear} }

// VertexAppend is a manual tap at lat/lng.
func VertexAppend(lat, lng float64) Event {
	return Event{Kind: EventVertexAppend, Vertex: geospatial.Vertex{Lat: lat, Lng: lng}, Source: SourceManual}
}

func RemoveVertex(index int) Event {
	return Event{Kind: EventVertexRemove, Index: index}
}

func SetUnit(unit units.MeasurementUnit) Event {
	return Event{Kind: EventSetUnit, Unit: unit}
}
