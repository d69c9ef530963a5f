// Package units converts square meters into the display units offered to
// surveyors.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MeasurementUnit identifies a display unit for area.
type MeasurementUnit string

const (
	Hectare     MeasurementUnit = "hectare"
	SquareMeter MeasurementUnit = "sqm"
	Acre        MeasurementUnit = "acre"
	SquareFoot  MeasurementUnit = "sqft"
)

var ErrUnknownUnit = errors.New("unknown measurement unit")

// UnitInfo describes how a unit is derived from square meters.
type UnitInfo struct {
	Unit MeasurementUnit `json:"unit"`
	// SquareMeters is the size of one unit in m².
	SquareMeters float64 `json:"square_meters"`
	Decimals     int     `json:"decimals"`
	Label        string  `json:"label"`
}

var table = map[MeasurementUnit]UnitInfo{
	Hectare:     {Unit: Hectare, SquareMeters: 10000, Decimals: 2, Label: "ha"},
	SquareMeter: {Unit: SquareMeter, SquareMeters: 1, Decimals: 0, Label: "m²"},
	Acre:        {Unit: Acre, SquareMeters: 4046.86, Decimals: 2, Label: "ac"},
	SquareFoot:  {Unit: SquareFoot, SquareMeters: 0.092903, Decimals: 0, Label: "ft²"},
}

// All returns the supported units in display order.
func All() []MeasurementUnit {
	return []MeasurementUnit{Hectare, SquareMeter, Acre, SquareFoot}
}

// Info returns the conversion entry for unit. Unknown units resolve to square
// meters with ok set to false.
func Info(unit MeasurementUnit) (UnitInfo, bool) {
	info, ok := table[unit]
	if !ok {
		return table[SquareMeter], false
	}
	return info, true
}

// Parse resolves a unit name, accepting the common short labels too.
func Parse(s string) (MeasurementUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hectare", "hectares", "ha":
		return Hectare, nil
	case "sqm", "m2", "m²", "square_meter", "square_meters":
		return SquareMeter, nil
	case "acre", "acres", "ac":
		return Acre, nil
	case "sqft", "ft2", "ft²", "square_foot", "square_feet":
		return SquareFoot, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// ToDisplay converts an area in m² into unit, rounded to the unit's decimals.
func ToDisplay(areaSqMeters float64, unit MeasurementUnit) (float64, int) {
	info, _ := Info(unit)
	return round(areaSqMeters/info.SquareMeters, info.Decimals), info.Decimals
}

// FromDisplay converts a value expressed in unit back into m².
func FromDisplay(value float64, unit MeasurementUnit) float64 {
	info, _ := Info(unit)
	return value * info.SquareMeters
}

// Format renders the area with the unit's precision and label, e.g. "1.25 ha".
func Format(areaSqMeters float64, unit MeasurementUnit) string {
	info, _ := Info(unit)
	value, decimals := ToDisplay(areaSqMeters, unit)
	return strconv.FormatFloat(value, 'f', decimals, 64) + " " + info.Label
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
