package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveConfigBoundaries(t *testing.T) {
	tests := []struct {
		width int
		tier  string
	}{
		{0, "mobile"},
		{320, "mobile"},
		{767, "mobile"},
		{768, "tablet"},
		{1023, "tablet"},
		{1024, "desktop"},
		{2560, "desktop"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, ResolveConfig(tt.width).Tier, "width %d", tt.width)
	}
}

func TestResolveConfigValues(t *testing.T) {
	mobile := ResolveConfig(375)
	assert.Equal(t, "400px", mobile.Height)
	assert.Equal(t, 12, mobile.DefaultZoom)
	assert.Equal(t, ControlsLarge, mobile.ControlSize)

	tablet := ResolveConfig(800)
	assert.Equal(t, "500px", tablet.Height)
	assert.Equal(t, 13, tablet.DefaultZoom)
	assert.Equal(t, ControlsMedium, tablet.ControlSize)

	desktop := DefaultConfig()
	assert.Equal(t, "desktop", desktop.Tier)
	assert.Equal(t, "600px", desktop.Height)
	assert.Equal(t, 1024, desktop.MinWidth)
}

func TestResponsiveResolverCustomTiers(t *testing.T) {
	r := NewResponsiveResolver([]ResponsiveConfig{
		{Tier: "small", MinWidth: 0, Height: "300px"},
		{Tier: "wide", MinWidth: 1440, Height: "800px"},
	})
	assert.Equal(t, "wide", r.Default().Tier)
	assert.Equal(t, "small", r.Resolve(1439).Tier)
	assert.Equal(t, "wide", r.Resolve(1440).Tier)
	assert.Equal(t, "small", r.Resolve(-1).Tier)
	assert.Len(t, r.Tiers(), 2)

	assert.Equal(t, "desktop", NewResponsiveResolver(nil).Default().Tier)
}
