package geo

import "github.com/paulmach/orb"

// boundsPadding is the share of each axis span added on every side so markers
// never sit flush against the viewport edge.
const boundsPadding = 0.05

// MapBounds is an auto-fit viewport: [[south, west], [north, east]].
// It marshals to the nested array form map widgets expect.
type MapBounds [2][2]float64

// SouthWest returns the lower-left corner.
func (b MapBounds) SouthWest() LatLng {
	return LatLng{Lat: b[0][0], Lng: b[0][1]}
}

// NorthEast returns the upper-right corner.
func (b MapBounds) NorthEast() LatLng {
	return LatLng{Lat: b[1][0], Lng: b[1][1]}
}

// Bound returns the bounds as an orb.Bound.
func (b MapBounds) Bound() orb.Bound {
	return orb.Bound{
		Min: b.SouthWest().Point(),
		Max: b.NorthEast().Point(),
	}
}

// CalculateBounds returns padded bounds around points, or nil when fewer than
// two points are given.
func CalculateBounds(points []LatLng) *MapBounds {
	if len(points) < 2 {
		return nil
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng
	for _, p := range points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lng < minLng {
			minLng = p.Lng
		}
		if p.Lng > maxLng {
			maxLng = p.Lng
		}
	}

	latPad := (maxLat - minLat) * boundsPadding
	lngPad := (maxLng - minLng) * boundsPadding

	return &MapBounds{
		{minLat - latPad, minLng - lngPad},
		{maxLat + latPad, maxLng + lngPad},
	}
}
