package service

import (
	"context"

	"github.com/joeblew999/propmap/internal/geo"
)

// StatusAvailable is the only status the map ever shows.
const StatusAvailable = "available"

// Fallbacks applied by TransformForMap when the upstream row omits a field.
const (
	DefaultTitle         = "Propiedad sin título"
	DefaultCurrency      = "USD"
	DefaultPropertyType  = "other"
	DefaultOperationType = "sale"
)

// RawProperty is a property row as returned by a PropertySource. Every field
// except ID may be missing; Images may hold anything the source decoded.
type RawProperty struct {
	ID            int64    `json:"id"`
	Title         *string  `json:"title"`
	Price         *float64 `json:"price"`
	Currency      *string  `json:"currency"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	PropertyType  *string  `json:"property_type"`
	OperationType *string  `json:"operation_type"`
	Images        any      `json:"images"`
	Status        *string  `json:"status"`
}

// MapPropertyData is the fully typed record the map renders. Coordinates are
// always inside the configured country box.
type MapPropertyData struct {
	ID            int64    `json:"id" doc:"Property ID" example:"1"`
	Title         string   `json:"title" doc:"Display title" example:"Casa en Reconquista"`
	Price         float64  `json:"price" minimum:"0" doc:"Price" example:"120000"`
	Currency      string   `json:"currency" doc:"Currency code" example:"USD"`
	Latitude      float64  `json:"latitude" doc:"Latitude" example:"-29.15"`
	Longitude     float64  `json:"longitude" doc:"Longitude" example:"-59.65"`
	PropertyType  string   `json:"property_type" doc:"Property category" example:"house"`
	OperationType string   `json:"operation_type" doc:"Sale or rental" example:"sale"`
	Images        []string `json:"images" doc:"Image URLs, possibly empty"`
	Status        string   `json:"status" doc:"Listing status" example:"available"`
}

// LatLng returns the record's position.
func (p MapPropertyData) LatLng() geo.LatLng {
	return geo.LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

// PropertySource is the read side of the property store.
//
// FetchAvailable returns rows with status "available" and non-null
// coordinates, requesting only the map fields. FetchByID returns nil, nil when
// no row has the id.
type PropertySource interface {
	FetchAvailable(ctx context.Context) ([]RawProperty, error)
	FetchByID(ctx context.Context, id int64) (*RawProperty, error)
}
