package geospatial

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidGeoJSON = errors.New("invalid GeoJSON")

// ToFeature wraps the polygon in a GeoJSON feature with a closed outer ring.
func ToFeature(p Polygon, properties map[string]interface{}) *geojson.Feature {
	ring := p.Ring()
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}

	feature := geojson.NewFeature(orb.Polygon{ring})
	for k, v := range properties {
		feature.Properties[k] = v
	}
	return feature
}

// MarshalFeature encodes the polygon as a GeoJSON feature.
func MarshalFeature(p Polygon, properties map[string]interface{}) ([]byte, error) {
	return ToFeature(p, properties).MarshalJSON()
}

// ParseFeature decodes a GeoJSON feature holding a single polygon and returns
// its outer ring.
func ParseFeature(data []byte) (Polygon, error) {
	feature, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}

	if feature.Geometry == nil {
		return nil, fmt.Errorf("%w: no geometry", ErrInvalidGeoJSON)
	}

	poly, ok := feature.Geometry.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: expected Polygon, got %s", ErrInvalidGeoJSON, feature.Geometry.GeoJSONType())
	}
	if len(poly) == 0 {
		return Polygon{}, nil
	}

	return PolygonFromRing(poly[0]), nil
}
