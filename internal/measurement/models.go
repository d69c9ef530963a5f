package measurement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/units"
)

var (
	ErrNotFound          = errors.New("measurement not found")
	ErrInvalidPolygon    = errors.New("measurement needs a polygon with at least 3 vertices")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ExportFormat selects the encoding of an exported measurement list.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// Measurement is a saved parcel outline with its computed area.
type Measurement struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	Name            string                `json:"name" db:"name"`
	Geometry        datatypes.JSON        `json:"geometry" db:"geometry"` // GeoJSON Feature
	VertexCount     int                   `json:"vertex_count" db:"vertex_count"`
	AreaSqMeters    float64               `json:"area_sq_meters" db:"area_sq_meters"`
	PerimeterMeters float64               `json:"perimeter_meters" db:"perimeter_meters"`
	Unit            units.MeasurementUnit `json:"unit" db:"unit"`
	DisplayArea     float64               `json:"display_area" db:"display_area"`
	ArchiveKey      *string               `json:"archive_key,omitempty" db:"archive_key"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
}

// Polygon decodes the stored outline.
func (m *Measurement) Polygon() (geospatial.Polygon, error) {
	return geospatial.ParseFeature(m.Geometry)
}

// DisplayText renders the area in the measurement's unit.
func (m *Measurement) DisplayText() string {
	return units.Format(m.AreaSqMeters, m.Unit)
}

// SaveRequest carries an outline captured by an editing session.
type SaveRequest struct {
	Name    string
	Polygon geospatial.Polygon
	Unit    units.MeasurementUnit
}

// ListFilter pages through measurements, newest first.
type ListFilter struct {
	Limit  int
	Offset int
}
