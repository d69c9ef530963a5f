package terrain

import (
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// DefaultResolution is the lattice size used when the caller does not pick one.
const DefaultResolution = 20

// Grid is an N×N lattice over a polygon's bounding box, reduced to the
// lattice points that fall inside the polygon.
type Grid struct {
	Bounds     geospatial.BoundingBox `json:"bounds"`
	Resolution int                    `json:"resolution"`
	Candidates int                    `json:"candidates"`
	Points     []geospatial.Vertex    `json:"-"`
}

// BuildGrid lays out the lattice row by row from the south-west corner and
// keeps the points accepted by PointInPolygon, in lattice order.
func BuildGrid(polygon geospatial.Polygon, resolution int) Grid {
	bounds := geospatial.Bounds(polygon)
	grid := Grid{
		Bounds:     bounds,
		Resolution: resolution,
		Points:     []geospatial.Vertex{},
	}
	if resolution <= 0 {
		return grid
	}

	for i := 0; i < resolution; i++ {
		lat := latticeCoord(bounds.South, bounds.North, i, resolution)
		for j := 0; j < resolution; j++ {
			candidate := geospatial.Vertex{
				Lat: lat,
				Lng: latticeCoord(bounds.West, bounds.East, j, resolution),
			}
			grid.Candidates++
			if geospatial.PointInPolygon(candidate, polygon) {
				grid.Points = append(grid.Points, candidate)
			}
		}
	}

	return grid
}

// latticeCoord spreads n points evenly from lo to hi inclusive; a single
// point sits in the middle.
func latticeCoord(lo, hi float64, i, n int) float64 {
	if n == 1 {
		return (lo + hi) / 2
	}
	return lo + (hi-lo)*float64(i)/float64(n-1)
}
