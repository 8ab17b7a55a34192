package tiles

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
)

func props() []service.MapPropertyData {
	return []service.MapPropertyData{
		{ID: 1, Title: "Casa", Price: 100000, Currency: "USD", Latitude: -29.15, Longitude: -59.65, PropertyType: "house", OperationType: "sale"},
		{ID: 2, Title: "Depto", Price: 500, Currency: "ARS", Latitude: -34.6, Longitude: -58.4, PropertyType: "apartment", OperationType: "rent"},
	}
}

func TestEncodeKeepsOnlyPropertiesInTile(t *testing.T) {
	tile := maptile.At(orb.Point{-59.65, -29.15}, 10)
	e := NewEncoder(render.DefaultPalette())

	data, err := e.Encode(tile, props())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, LayerName, layers[0].Name)
	require.Len(t, layers[0].Features, 1)

	layers.ProjectToWGS84(tile)
	f := layers[0].Features[0]
	assert.EqualValues(t, 1, f.ID)
	assert.Equal(t, render.ColorRed, f.Properties["color"])
	assert.Equal(t, "sale", f.Properties["operation_type"])

	pt, ok := f.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -29.15, pt.Lat(), 0.001)
	assert.InDelta(t, -59.65, pt.Lon(), 0.001)
}

func TestEncodeEmptyTile(t *testing.T) {
	tile := maptile.New(0, 0, 3) // north Pacific
	data, err := NewEncoder(render.DefaultPalette()).Encode(tile, props())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLowZoomTileHoldsEverything(t *testing.T) {
	tile, err := Tile(0, 0, 0)
	require.NoError(t, err)
	fc := NewEncoder(render.DefaultPalette()).Features(tile, props())
	assert.Len(t, fc.Features, 2)
}

func TestTileValidation(t *testing.T) {
	tile, err := Tile(2, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, maptile.Zoom(2), tile.Z)

	for _, zxy := range [][3]int{{-1, 0, 0}, {23, 0, 0}, {2, 4, 0}, {2, 0, -1}} {
		_, err := Tile(zxy[0], zxy[1], zxy[2])
		assert.Error(t, err, zxy)
	}
}
