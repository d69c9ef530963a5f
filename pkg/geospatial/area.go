package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthMeanRadius is the IUGG mean earth radius in meters.
const EarthMeanRadius = 6371008.8

// orb scales its spherical formulas by the WGS84 equatorial radius; the
// ring area is proportional to R², so it is rescaled to the mean radius.
var areaScale = (EarthMeanRadius / orb.EarthRadius) * (EarthMeanRadius / orb.EarthRadius)

// Area returns the unsigned geodesic area of the ring in square meters.
//
// Each edge contributes its longitude delta times the sine of the latitude
// at the shared vertex, so winding direction does not matter. Rings with
// fewer than three vertices have an area of exactly 0. Self-intersecting
// rings are not detected; they are measured as if simple.
func Area(ring Polygon) float64 {
	if len(ring) < 3 {
		return 0
	}
	return geo.Area(ring.Ring()) * areaScale
}

// Distance returns the great-circle distance between two vertices in meters.
func Distance(a, b Vertex) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point()) * EarthMeanRadius / orb.EarthRadius
}

// Perimeter returns the length of the closed ring in meters.
func Perimeter(ring Polygon) float64 {
	if len(ring) < 2 {
		return 0
	}
	total := 0.0
	for i := range ring {
		total += Distance(ring[i], ring[(i+1)%len(ring)])
	}
	return total
}
