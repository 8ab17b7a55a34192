package service

import "sort"

// ControlSize is the size class of map zoom/locate controls.
type ControlSize string

const (
	ControlsMedium ControlSize = "medium"
	ControlsLarge  ControlSize = "large"
)

// ResponsiveConfig is the map sizing for one device tier.
type ResponsiveConfig struct {
	Tier            string      `json:"tier" yaml:"tier" doc:"Device tier" example:"desktop"`
	MinWidth        int         `json:"minWidth" yaml:"min_width" minimum:"0" doc:"Lowest viewport width (px) for this tier" example:"1024"`
	Height          string      `json:"height" yaml:"height" doc:"Map container height" example:"600px"`
	DefaultZoom     int         `json:"defaultZoom" yaml:"default_zoom" doc:"Initial zoom level" example:"13"`
	ControlSize     ControlSize `json:"controlSize" yaml:"control_size" enum:"medium,large" doc:"Control size class" example:"medium"`
	ShowAttribution bool        `json:"showAttribution" yaml:"show_attribution" doc:"Whether to show tile attribution"`
}

// DefaultTiers are desktop, tablet and mobile. Mobile gets large controls for
// touch targets.
var DefaultTiers = []ResponsiveConfig{
	{Tier: "desktop", MinWidth: 1024, Height: "600px", DefaultZoom: 13, ControlSize: ControlsMedium, ShowAttribution: true},
	{Tier: "tablet", MinWidth: 768, Height: "500px", DefaultZoom: 13, ControlSize: ControlsMedium, ShowAttribution: true},
	{Tier: "mobile", MinWidth: 0, Height: "400px", DefaultZoom: 12, ControlSize: ControlsLarge, ShowAttribution: false},
}

// ResponsiveResolver picks a tier from a viewport width.
type ResponsiveResolver struct {
	tiers []ResponsiveConfig
}

// NewResponsiveResolver creates a resolver. Tiers are ordered by descending
// MinWidth; an empty list falls back to DefaultTiers.
func NewResponsiveResolver(tiers []ResponsiveConfig) *ResponsiveResolver {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	sorted := make([]ResponsiveConfig, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinWidth > sorted[j].MinWidth
	})
	return &ResponsiveResolver{tiers: sorted}
}

// Resolve returns the first tier whose MinWidth <= width. Widths below every
// tier get the smallest one.
func (r *ResponsiveResolver) Resolve(width int) ResponsiveConfig {
	for _, t := range r.tiers {
		if t.MinWidth <= width {
			return t
		}
	}
	return r.tiers[len(r.tiers)-1]
}

// Default is the tier used when no viewport is known (server render): the
// largest one.
func (r *ResponsiveResolver) Default() ResponsiveConfig {
	return r.tiers[0]
}

// Tiers returns the tiers in evaluation order.
func (r *ResponsiveResolver) Tiers() []ResponsiveConfig {
	out := make([]ResponsiveConfig, len(r.tiers))
	copy(out, r.tiers)
	return out
}

var defaultResolver = NewResponsiveResolver(DefaultTiers)

// ResolveConfig resolves width against DefaultTiers.
func ResolveConfig(width int) ResponsiveConfig {
	return defaultResolver.Resolve(width)
}

// DefaultConfig is the desktop tier.
func DefaultConfig() ResponsiveConfig {
	return defaultResolver.Default()
}
