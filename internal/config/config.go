// Package config loads map settings: responsive tiers, clustering, marker
// colours, the detail link, the picker's home location and the country box.
// Settings come from an optional YAML file layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/picker"
	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
)

// MapSettings is the map's tunable configuration.
type MapSettings struct {
	CountryBounds    geo.CountryBounds          `yaml:"country_bounds" json:"countryBounds"`
	DefaultCenter    geo.LatLng                 `yaml:"default_center" json:"defaultCenter"`
	Tiers            []service.ResponsiveConfig `yaml:"tiers" json:"tiers"`
	ClusterThreshold int                        `yaml:"cluster_threshold" json:"clusterThreshold"`
	Palette          render.Palette             `yaml:"palette" json:"palette"`
	DetailURL        string                     `yaml:"detail_url" json:"detailUrl"`
	Language         string                     `yaml:"language" json:"language"`
	MaxProperties    int                        `yaml:"max_properties" json:"maxProperties"`
	WarningLimit     int                        `yaml:"warning_limit" json:"warningLimit"`
}

// Default returns the built-in settings.
func Default() MapSettings {
	return MapSettings{
		CountryBounds:    geo.Argentina,
		DefaultCenter:    picker.DefaultCenter,
		Tiers:            append([]service.ResponsiveConfig(nil), service.DefaultTiers...),
		ClusterThreshold: render.DefaultClusterThreshold,
		Palette:          render.DefaultPalette(),
		DetailURL:        render.DefaultDetailURL,
		Language:         "es-AR",
		WarningLimit:     service.DefaultWarningLimit,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (MapSettings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read map settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Palette entries are merged with the
// default palette rather than replacing it.
func Parse(data []byte) (MapSettings, error) {
	s := Default()
	var file MapSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s, fmt.Errorf("parse map settings: %w", err)
	}

	if file.CountryBounds != (geo.CountryBounds{}) {
		s.CountryBounds = file.CountryBounds
	}
	if file.DefaultCenter != (geo.LatLng{}) {
		s.DefaultCenter = file.DefaultCenter
	}
	if len(file.Tiers) > 0 {
		s.Tiers = file.Tiers
	}
	if file.ClusterThreshold > 0 {
		s.ClusterThreshold = file.ClusterThreshold
	}
	s.Palette = s.Palette.Merge(file.Palette)
	if file.DetailURL != "" {
		s.DetailURL = file.DetailURL
	}
	if file.Language != "" {
		s.Language = file.Language
	}
	if file.MaxProperties > 0 {
		s.MaxProperties = file.MaxProperties
	}
	if file.WarningLimit > 0 {
		s.WarningLimit = file.WarningLimit
	}
	return s, s.Validate()
}

// Validate checks the settings are usable.
func (s MapSettings) Validate() error {
	var errs []error
	b := s.CountryBounds
	if b.South >= b.North || b.West >= b.East {
		errs = append(errs, fmt.Errorf("country_bounds: south/west must be below north/east"))
	}
	if !b.Contains(s.DefaultCenter.Lat, s.DefaultCenter.Lng) {
		errs = append(errs, fmt.Errorf("default_center %v is outside country_bounds", s.DefaultCenter))
	}
	for i, t := range s.Tiers {
		if t.Tier == "" {
			errs = append(errs, fmt.Errorf("tiers[%d]: tier name is required", i))
		}
		if t.MinWidth < 0 {
			errs = append(errs, fmt.Errorf("tiers[%d]: min_width must be >= 0", i))
		}
	}
	return errors.Join(errs...)
}
