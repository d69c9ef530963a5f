package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDisplay(t *testing.T) {
	tests := []struct {
		unit     MeasurementUnit
		area     float64
		want     float64
		decimals int
	}{
		{Hectare, 12345, 1.23, 2},
		{SquareMeter, 12345.6, 12346, 0},
		{Acre, 4046.86, 1, 2},
		{SquareFoot, 1, 11, 0},
		{Hectare, 0, 0, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			got, decimals := ToDisplay(tt.area, tt.unit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.decimals, decimals)
		})
	}
}

func TestRoundTripWithinPrecision(t *testing.T) {
	areas := []float64{0, 1, 17.3, 999.99, 12345.678, 1.2364e10}

	for _, unit := range All() {
		info, ok := Info(unit)
		require.True(t, ok)
		// half of the last displayed digit, expressed in m²
		tolerance := 0.5 * math.Pow10(-info.Decimals) * info.SquareMeters

		for _, area := range areas {
			value, _ := ToDisplay(area, unit)
			assert.InDelta(t, area, FromDisplay(value, unit), tolerance*(1+1e-9), "%s %v", unit, area)
		}
	}
}

func TestUnknownUnitFallsBackToSquareMeters(t *testing.T) {
	_, ok := Info("furlong")
	assert.False(t, ok)

	value, decimals := ToDisplay(42.4, "furlong")
	assert.Equal(t, 42.0, value)
	assert.Equal(t, 0, decimals)
}

func TestParse(t *testing.T) {
	u, err := Parse(" HA ")
	require.NoError(t, err)
	assert.Equal(t, Hectare, u)

	u, err = Parse("sqft")
	require.NoError(t, err)
	assert.Equal(t, SquareFoot, u)

	_, err = Parse("furlong")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.24 ha", Format(12364, Hectare))
	assert.Equal(t, "500 m²", Format(499.6, SquareMeter))
}
