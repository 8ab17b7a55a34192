// Package store holds the PropertySource implementations the map reads from:
// an embedded DuckDB file, a Postgres pool and a remote REST endpoint.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/joeblew999/propmap/internal/service"
)

// mapColumns are the only fields the map needs.
const mapColumns = `id, title, price, currency, latitude, longitude, property_type, operation_type, images, status`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProperty reads one mapColumns row. Images are stored as JSON text; text
// that does not decode is passed through as nil and defaulted later.
func scanProperty(row rowScanner) (service.RawProperty, error) {
	var (
		raw    service.RawProperty
		images *string
	)
	err := row.Scan(
		&raw.ID,
		&raw.Title,
		&raw.Price,
		&raw.Currency,
		&raw.Latitude,
		&raw.Longitude,
		&raw.PropertyType,
		&raw.OperationType,
		&images,
		&raw.Status,
	)
	if err != nil {
		return raw, fmt.Errorf("scan property: %w", err)
	}
	if images != nil {
		var v any
		if json.Unmarshal([]byte(*images), &v) == nil {
			raw.Images = v
		}
	}
	return raw, nil
}

func encodeImages(images any) (*string, error) {
	if images == nil {
		return nil, nil
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	s := string(b)
	return &s, nil
}
