// Package service holds the map data domain: raw and display records, the
// transform, the map data service, responsive tiers, typed map errors and the
// property change bus.
package service

import (
	"context"
	"log/slog"

	"github.com/joeblew999/propmap/internal/geo"
)

// DefaultWarningLimit caps per-record coordinate warnings per fetch; the rest
// are folded into one summary line.
const DefaultWarningLimit = 10

// MapDataService fetches available properties, drops rows with out-of-box
// coordinates and transforms the rest for display.
type MapDataService struct {
	source       PropertySource
	bounds       geo.CountryBounds
	logger       *slog.Logger
	warningLimit int
}

// MapDataOption configures a MapDataService.
type MapDataOption func(*MapDataService)

// WithCountryBounds replaces the default Argentina box.
func WithCountryBounds(b geo.CountryBounds) MapDataOption {
	return func(s *MapDataService) { s.bounds = b }
}

// WithLogger sets the logger used for dropped-record warnings.
func WithLogger(l *slog.Logger) MapDataOption {
	return func(s *MapDataService) { s.logger = l }
}

// WithWarningLimit sets how many dropped records are logged individually per
// fetch. Zero or less means every record is logged.
func WithWarningLimit(n int) MapDataOption {
	return func(s *MapDataService) { s.warningLimit = n }
}

// NewMapDataService creates a new map data service.
func NewMapDataService(source PropertySource, opts ...MapDataOption) *MapDataService {
	s := &MapDataService{
		source:       source,
		bounds:       geo.Argentina,
		logger:       slog.Default(),
		warningLimit: DefaultWarningLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMapProperties returns every available property with valid coordinates,
// in source order. Invalid rows are logged and skipped; only a failed fetch
// returns an error, always a *MapError.
func (s *MapDataService) GetMapProperties(ctx context.Context) ([]MapPropertyData, error) {
	rows, err := s.source.FetchAvailable(ctx)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	props := make([]MapPropertyData, 0, len(rows))
	dropped := 0
	for _, raw := range rows {
		if !s.acceptable(raw) {
			dropped++
			if s.warningLimit <= 0 || dropped <= s.warningLimit {
				s.logger.Warn("skipping property with invalid coordinates",
					"property_id", raw.ID,
					"latitude", raw.Latitude,
					"longitude", raw.Longitude,
				)
			}
			continue
		}
		props = append(props, TransformForMap(raw))
	}

	if s.warningLimit > 0 && dropped > s.warningLimit {
		s.logger.Warn("properties skipped for invalid coordinates",
			"dropped", dropped,
			"logged", s.warningLimit,
			"fetched", len(rows),
		)
	}

	return props, nil
}

// GetPropertyByID returns one property through the same pipeline. It returns
// nil without error when the property is missing, not available, or has
// invalid coordinates.
func (s *MapDataService) GetPropertyByID(ctx context.Context, id int64) (*MapPropertyData, error) {
	raw, err := s.source.FetchByID(ctx, id)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if raw == nil {
		return nil, nil
	}
	if !s.acceptable(*raw) {
		s.logger.Warn("property not shown on map",
			"property_id", raw.ID,
			"latitude", raw.Latitude,
			"longitude", raw.Longitude,
		)
		return nil, nil
	}
	p := TransformForMap(*raw)
	return &p, nil
}

// CalculateBounds returns padded auto-fit bounds, nil for fewer than two
// properties.
func (s *MapDataService) CalculateBounds(props []MapPropertyData) *geo.MapBounds {
	points := make([]geo.LatLng, len(props))
	for i, p := range props {
		points[i] = p.LatLng()
	}
	return geo.CalculateBounds(points)
}

// ValidateCoordinates checks a coordinate pair against the service's box.
func (s *MapDataService) ValidateCoordinates(lat, lng *float64) bool {
	return s.bounds.Valid(lat, lng)
}

// CountryBounds returns the box the service validates against.
func (s *MapDataService) CountryBounds() geo.CountryBounds {
	return s.bounds
}

func (s *MapDataService) acceptable(raw RawProperty) bool {
	if raw.Status != nil && *raw.Status != StatusAvailable {
		return false
	}
	return s.bounds.Valid(raw.Latitude, raw.Longitude)
}
