package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestIsValidCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng *float64
		want     bool
	}{
		{"reconquista", f(-29.15), f(-59.65), true},
		{"north-west corner", f(-21.781277), f(-73.560562), true},
		{"south-east corner", f(-55.061314), f(-53.591835), true},
		{"north of box", f(-21.7), f(-59.65), false},
		{"south of box", f(-55.1), f(-59.65), false},
		{"east of box", f(-29.15), f(-53.5), false},
		{"west of box", f(-29.15), f(-73.6), false},
		{"lat 999", f(999), f(-59.65), false},
		{"nil lat", nil, f(-59.65), false},
		{"nil lng", f(-29.15), nil, false},
		{"NaN lat", f(math.NaN()), f(-59.65), false},
		{"NaN lng", f(-29.15), f(math.NaN()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCoordinate(tt.lat, tt.lng))
		})
	}
}

func TestCountryBoundsSubstitutable(t *testing.T) {
	uruguay := CountryBounds{North: -30.08, South: -34.97, East: -53.07, West: -58.44}
	assert.True(t, uruguay.Contains(-34.9, -56.16))
	assert.False(t, uruguay.Contains(-29.15, -59.65))

	b := uruguay.Bound()
	assert.Equal(t, -58.44, b.Min.Lon())
	assert.Equal(t, -30.08, b.Max.Lat())
}

func TestCalculateBoundsTooFewPoints(t *testing.T) {
	assert.Nil(t, CalculateBounds(nil))
	assert.Nil(t, CalculateBounds([]LatLng{{Lat: -29.15, Lng: -59.65}}))
}

func TestCalculateBoundsPadding(t *testing.T) {
	b := CalculateBounds([]LatLng{
		{Lat: -29.15, Lng: -59.65},
		{Lat: -29.20, Lng: -59.70},
	})
	require.NotNil(t, b)

	sw, ne := b.SouthWest(), b.NorthEast()
	assert.InDelta(t, -29.2025, sw.Lat, 1e-9)
	assert.InDelta(t, -59.7025, sw.Lng, 1e-9)
	assert.InDelta(t, -29.1475, ne.Lat, 1e-9)
	assert.InDelta(t, -59.6475, ne.Lng, 1e-9)

	// Both points are strictly inside.
	assert.Less(t, sw.Lat, -29.20)
	assert.Less(t, sw.Lng, -59.70)
	assert.Greater(t, ne.Lat, -29.15)
	assert.Greater(t, ne.Lng, -59.65)
}

func TestCalculateBoundsZeroSpanAxis(t *testing.T) {
	b := CalculateBounds([]LatLng{
		{Lat: -30, Lng: -60},
		{Lat: -30, Lng: -61},
	})
	require.NotNil(t, b)
	assert.Equal(t, -30.0, b.SouthWest().Lat)
	assert.Equal(t, -30.0, b.NorthEast().Lat)
	assert.InDelta(t, -61.05, b.SouthWest().Lng, 1e-9)
}

func TestMapBoundsJSON(t *testing.T) {
	b := MapBounds{{-29.2, -59.7}, {-29.1, -59.6}}
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `[[-29.2,-59.7],[-29.1,-59.6]]`, string(data))

	bound := b.Bound()
	assert.True(t, bound.Contains(LatLng{Lat: -29.15, Lng: -59.65}.Point()))
}
