package terrain

import (
	"math"

	"carbon-scribe/parcel-survey/parcel-survey-backend/internal/elevation"
	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// SlopeStats aggregates slope percentages.
type SlopeStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Slopes returns |Δelevation| / distance * 100 for each pair of consecutive
// samples. Consecutive means adjacent in lattice order, so the last point of
// one row is paired with the first point of the next. Coincident pairs are
// skipped.
func Slopes(samples []elevation.Sample) []float64 {
	if len(samples) < 2 {
		return []float64{}
	}

	out := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		d := geospatial.Distance(samples[i-1].Location, samples[i].Location)
		if d == 0 {
			continue
		}
		out = append(out, math.Abs(samples[i].Elevation-samples[i-1].Elevation)/d*100)
	}
	return out
}

// SummarizeSlopes reduces slopes to min, max and mean. An empty input gives
// the zero value.
func SummarizeSlopes(slopes []float64) SlopeStats {
	if len(slopes) == 0 {
		return SlopeStats{}
	}

	stats := SlopeStats{Min: slopes[0], Max: slopes[0], Count: len(slopes)}
	sum := 0.0
	for _, s := range slopes {
		stats.Min = math.Min(stats.Min, s)
		stats.Max = math.Max(stats.Max, s)
		sum += s
	}
	stats.Average = sum / float64(len(slopes))
	return stats
}

// ElevationRange returns the lowest and highest sample.
func ElevationRange(samples []elevation.Sample) (min, max float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	min, max = samples[0].Elevation, samples[0].Elevation
	for _, s := range samples[1:] {
		min = math.Min(min, s.Elevation)
		max = math.Max(max, s.Elevation)
	}
	return min, max
}
