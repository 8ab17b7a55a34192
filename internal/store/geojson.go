package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/propmap/internal/service"
)

// ErrNoDataDir is returned when seeding without a database directory; an
// in-memory database would be discarded as soon as the seed finished.
var ErrNoDataDir = errors.New("seed needs a data directory")

// SeedDuckDB loads the point features of a GeoJSON file into the DuckDB
// database under dataDir and returns how many rows were written.
func SeedDuckDB(ctx context.Context, dataDir, path string) (int, error) {
	if dataDir == "" {
		return 0, ErrNoDataDir
	}
	rows, err := ReadGeoJSON(path)
	if err != nil {
		return 0, err
	}
	db, err := OpenDuckDB(ctx, DuckDBConfig{DataDir: dataDir, DBName: "propmap"})
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return db.Upsert(ctx, rows)
}

// ReadGeoJSON loads seed rows from a GeoJSON FeatureCollection file.
func ReadGeoJSON(path string) ([]service.RawProperty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return FromFeatures(fc)
}

// FromFeatures converts point features into raw property rows. The id comes
// from the feature id or an "id" property. Non-point features are rejected
// so a bad seed file fails loudly instead of loading half.
func FromFeatures(fc *geojson.FeatureCollection) ([]service.RawProperty, error) {
	rows := make([]service.RawProperty, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: want Point geometry, got %T", i, f.Geometry)
		}
		id, ok := featureID(f)
		if !ok {
			return nil, fmt.Errorf("feature %d: missing numeric id", i)
		}
		lat, lng := pt.Lat(), pt.Lon()
		r := service.RawProperty{
			ID:            id,
			Latitude:      &lat,
			Longitude:     &lng,
			Title:         stringProp(f.Properties, "title"),
			Price:         floatProp(f.Properties, "price"),
			Currency:      stringProp(f.Properties, "currency"),
			PropertyType:  stringProp(f.Properties, "property_type"),
			OperationType: stringProp(f.Properties, "operation_type"),
			Status:        stringProp(f.Properties, "status"),
			Images:        f.Properties["images"],
		}
		if r.Status == nil {
			s := service.StatusAvailable
			r.Status = &s
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func featureID(f *geojson.Feature) (int64, bool) {
	for _, v := range []any{f.ID, f.Properties["id"]} {
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
	}
	return 0, false
}

func stringProp(p geojson.Properties, key string) *string {
	if s, ok := p[key].(string); ok {
		return &s
	}
	return nil
}

func floatProp(p geojson.Properties, key string) *float64 {
	if f, ok := p[key].(float64); ok {
		return &f
	}
	return nil
}
