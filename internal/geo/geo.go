// Package geo holds the coordinate rules shared by the map service and the
// location picker: the country bounding box every marker must fall inside and
// the padded auto-fit bounds computed from a set of points.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a WGS84 coordinate in latitude/longitude order.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat" doc:"Latitude" example:"-29.15"`
	Lng float64 `json:"lng" yaml:"lng" doc:"Longitude" example:"-59.65"`
}

// Point converts to an orb point (lng, lat order).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb point back to LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// CountryBounds is the rectangle used to reject coordinates implausible for
// the target market.
type CountryBounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

// Argentina is the default country box.
var Argentina = CountryBounds{
	North: -21.781277,
	South: -55.061314,
	East:  -53.591835,
	West:  -73.560562,
}

// Contains reports whether (lat, lng) lies inside the box, edges included.
// NaN on either axis is never inside.
func (b CountryBounds) Contains(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// Valid is Contains for nullable inputs; a nil value is never valid.
func (b CountryBounds) Valid(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	return b.Contains(*lat, *lng)
}

// Bound returns the box as an orb.Bound.
func (b CountryBounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// IsValidCoordinate validates against the Argentina box.
func IsValidCoordinate(lat, lng *float64) bool {
	return Argentina.Valid(lat, lng)
}
