package terrain

import (
	"fmt"
	"math"
)

// RGB is an 8-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorStops is the low-to-high elevation ramp.
var ColorStops = [5]RGB{
	{R: 0, G: 0, B: 255},   // blue
	{R: 0, G: 255, B: 0},   // green
	{R: 255, G: 255, B: 0}, // yellow
	{R: 255, G: 165, B: 0}, // orange
	{R: 255, G: 0, B: 0},   // red
}

// Classify maps elevation onto the ramp, normalizing by [min, max] and
// interpolating between the two surrounding stops. A flat range maps to the
// first stop.
func Classify(elevation, min, max float64) RGB {
	if max <= min {
		return ColorStops[0]
	}

	t := (elevation - min) / (max - min)
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(ColorStops)-1)
	i := int(math.Floor(pos))
	if i >= len(ColorStops)-1 {
		return ColorStops[len(ColorStops)-1]
	}
	frac := pos - float64(i)

	lo, hi := ColorStops[i], ColorStops[i+1]
	return RGB{
		R: lerp(lo.R, hi.R, frac),
		G: lerp(lo.G, hi.G, frac),
		B: lerp(lo.B, hi.B, frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
