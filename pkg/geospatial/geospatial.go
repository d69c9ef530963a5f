// Package geospatial holds the parcel geometry primitives: vertices, polygon
// rings, bounding boxes, containment, geodesic area and the GeoJSON codec.
package geospatial

import (
	"github.com/paulmach/orb"
)

// Vertex is a geographic coordinate in decimal degrees.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts the vertex to an orb point (lng, lat order).
func (v Vertex) Point() orb.Point {
	return orb.Point{v.Lng, v.Lat}
}

// VertexFromPoint converts an orb point back to a vertex.
func VertexFromPoint(p orb.Point) Vertex {
	return Vertex{Lat: p.Lat(), Lng: p.Lon()}
}

// Polygon is an ordered ring of vertices. The ring is implicitly closed; the
// first vertex is not repeated at the end.
type Polygon []Vertex

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return Polygon{}
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// IsClosable reports whether the polygon has enough vertices to form a ring.
func (p Polygon) IsClosable() bool {
	return len(p) >= 3
}

// Ring converts the polygon into an orb ring.
func (p Polygon) Ring() orb.Ring {
	ring := make(orb.Ring, len(p))
	for i, v := range p {
		ring[i] = v.Point()
	}
	return ring
}

// PolygonFromRing converts an orb ring into a polygon, dropping the closing
// vertex when the ring repeats its first point.
func PolygonFromRing(ring orb.Ring) Polygon {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	out := make(Polygon, n)
	for i := 0; i < n; i++ {
		out[i] = VertexFromPoint(ring[i])
	}
	return out
}

// BoundingBox is the latitude/longitude envelope of a ring.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Bounds returns the min/max envelope of the ring's vertices. An empty ring
// yields the zero box.
func Bounds(ring Polygon) BoundingBox {
	if len(ring) == 0 {
		return BoundingBox{}
	}
	b := ring.Ring().Bound()
	return BoundingBox{
		North: b.Top(),
		South: b.Bottom(),
		East:  b.Right(),
		West:  b.Left(),
	}
}

// Contains reports whether the vertex lies within the box, edges included.
func (b BoundingBox) Contains(v Vertex) bool {
	return v.Lat >= b.South && v.Lat <= b.North && v.Lng >= b.West && v.Lng <= b.East
}

// PointInPolygon tests containment with the even-odd ray casting rule. The
// ring is closed implicitly. Points exactly on an edge follow whatever the
// crossing rule yields for them.
func PointInPolygon(point Vertex, ring Polygon) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi := ring[i]
		vj := ring[j]

		if (vi.Lat > point.Lat) != (vj.Lat > point.Lat) &&
			point.Lng < (vj.Lng-vi.Lng)*(point.Lat-vi.Lat)/(vj.Lat-vi.Lat)+vi.Lng {
			inside = !inside
		}
		j = i
	}

	return inside
}
