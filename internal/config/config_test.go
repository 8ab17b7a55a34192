package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/render"
)

func TestDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, geo.Argentina, s.CountryBounds)
	assert.Equal(t, geo.LatLng{Lat: -29.15, Lng: -59.65}, s.DefaultCenter)
	assert.Equal(t, 50, s.ClusterThreshold)
	assert.Len(t, s.Tiers, 3)
	assert.NoError(t, s.Validate())
}

func TestParseOverrides(t *testing.T) {
	s, err := Parse([]byte(`
default_center: {lat: -31.63, lng: -60.70}
cluster_threshold: 80
detail_url: /inmuebles/%d
max_properties: 500
palette:
  colors:
    PH: "#8e44ad"
tiers:
  - tier: wide
    min_width: 1440
    height: 800px
    default_zoom: 14
    control_size: medium
    show_attribution: true
  - tier: narrow
    min_width: 0
    height: 350px
    default_zoom: 11
    control_size: large
`))
	require.NoError(t, err)
	assert.Equal(t, geo.LatLng{Lat: -31.63, Lng: -60.70}, s.DefaultCenter)
	assert.Equal(t, 80, s.ClusterThreshold)
	assert.Equal(t, "/inmuebles/%d", s.DetailURL)
	assert.Equal(t, 500, s.MaxProperties)
	assert.Equal(t, "#8e44ad", s.Palette.Color("ph"))
	assert.Equal(t, render.ColorRed, s.Palette.Color("casa"))
	require.Len(t, s.Tiers, 2)
	assert.Equal(t, 1440, s.Tiers[0].MinWidth)
	assert.Equal(t, 14, s.Tiers[0].DefaultZoom)
	assert.Equal(t, geo.Argentina, s.CountryBounds)
}

func TestParseRejectsBadSettings(t *testing.T) {
	_, err := Parse([]byte(`default_center: {lat: 40.7, lng: -74.0}`))
	assert.ErrorContains(t, err, "default_center")

	_, err = Parse([]byte(`country_bounds: {north: -50, south: -20, east: -53, west: -73}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`tiers: [{min_width: -1}]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`tiers: [`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster_threshold: 25\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, s.ClusterThreshold)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
