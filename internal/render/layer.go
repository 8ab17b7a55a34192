// Package render turns map records into what a map draws: coloured markers,
// geohash clusters when there are too many points, popups and accessible
// HTML or GeoJSON output.
package render

import (
	"fmt"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"golang.org/x/text/language"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/service"
)

// DefaultClusterThreshold is the marker count above which markers cluster.
const DefaultClusterThreshold = 50

// SizeClass buckets a cluster by member count.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// ClassifySize returns small below 10, medium below 100, large otherwise.
func ClassifySize(count int) SizeClass {
	switch {
	case count < 10:
		return SizeSmall
	case count < 100:
		return SizeMedium
	}
	return SizeLarge
}

// View is the visible part of the map. A nil Viewport shows everything.
type View struct {
	Viewport *orb.Bound
	Zoom     int
}

// Marker is a single property on the map.
type Marker struct {
	ID       string                  `json:"id"`
	Property service.MapPropertyData `json:"property"`
	Color    string                  `json:"color"`
	Label    string                  `json:"label"`
	Popup    Popup                   `json:"popup"`
}

// Cluster groups nearby markers that share a geohash cell.
type Cluster struct {
	ID          string     `json:"id"`
	Geohash     string     `json:"geohash"`
	Center      geo.LatLng `json:"center"`
	Bound       orb.Bound  `json:"-"`
	Count       int        `json:"count"`
	Size        SizeClass  `json:"size"`
	MinPrice    float64    `json:"minPrice"`
	MaxPrice    float64    `json:"maxPrice"`
	PropertyIDs []int64    `json:"propertyIds"`
	Label       string     `json:"label"`
	// ZoomTo is the first zoom at which the cluster's cell splits.
	ZoomTo      int        `json:"zoomTo"`
}

func (c Cluster) West() float64 { return c.Bound.Min[0] }
func (c Cluster) South() float64 { return c.Bound.Min[1] }
func (c Cluster) East() float64 { return c.Bound.Max[0] }
func (c Cluster) North() float64 { return c.Bound.Max[1] }

// Result is one render pass.
type Result struct {
	Markers   []Marker  `json:"markers"`
	Clusters  []Cluster `json:"clusters"`
	Displayed int       `json:"displayed"`
	Clustered bool      `json:"clustered"`
}

// Layer renders markers and clusters.
type Layer struct {
	threshold int
	palette   Palette
	popups    *PopupBuilder
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithThreshold sets the clustering threshold.
func WithThreshold(n int) LayerOption {
	return func(l *Layer) {
		if n > 0 {
			l.threshold = n
		}
	}
}

// WithPalette replaces the marker palette.
func WithPalette(p Palette) LayerOption {
	return func(l *Layer) { l.palette = p }
}

// WithPopups sets the popup builder.
func WithPopups(b *PopupBuilder) LayerOption {
	return func(l *Layer) {
		if b != nil {
			l.popups = b
		}
	}
}

// NewLayer creates a layer with the default threshold and palette.
func NewLayer(opts ...LayerOption) *Layer {
	l := &Layer{
		threshold: DefaultClusterThreshold,
		palette:   DefaultPalette(),
		popups:    NewPopupBuilder("", language.Und),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Threshold reports the clustering threshold.
func (l *Layer) Threshold() int { return l.threshold }

// Popups returns the layer's popup builder.
func (l *Layer) Popups() *PopupBuilder { return l.popups }

// Palette returns the marker colours.
func (l *Layer) Palette() Palette { return l.palette }

// Render picks the visible properties and clusters them when there are more
// than the threshold. Cells holding a single property stay plain markers.
func (l *Layer) Render(props []service.MapPropertyData, v View) Result {
	visible := props
	if v.Viewport != nil {
		visible = NewIndex(props).Within(*v.Viewport)
	}

	res := Result{
		Markers:   []Marker{},
		Clusters:  []Cluster{},
		Displayed: len(visible),
	}
	if len(visible) <= l.threshold {
		for _, p := range visible {
			res.Markers = append(res.Markers, l.marker(p))
		}
		return res
	}

	res.Clustered = true
	precision := GeohashPrecision(v.Zoom)
	zoomTo := SplitZoom(v.Zoom)
	cells := make(map[string][]service.MapPropertyData)
	var order []string
	for _, p := range visible {
		key := geohash.EncodeWithPrecision(p.Latitude, p.Longitude, precision)
		if _, seen := cells[key]; !seen {
			order = append(order, key)
		}
		cells[key] = append(cells[key], p)
	}

	for _, key := range order {
		members := cells[key]
		if len(members) == 1 {
			res.Markers = append(res.Markers, l.marker(members[0]))
			continue
		}
		c := newCluster(key, members)
		c.ZoomTo = zoomTo
		res.Clusters = append(res.Clusters, c)
	}
	sort.Slice(res.Clusters, func(i, j int) bool { return res.Clusters[i].Geohash < res.Clusters[j].Geohash })
	return res
}

func (l *Layer) marker(p service.MapPropertyData) Marker {
	pop := l.popups.Build(p)
	label := p.Title
	if pop.Price != "" {
		label += ", " + pop.Price
	}
	if pop.Operation != "" {
		label += ", " + pop.Operation
	}
	return Marker{
		ID:       fmt.Sprintf("marker-%d", p.ID),
		Property: p,
		Color:    l.palette.Color(p.PropertyType),
		Label:    label,
		Popup:    pop,
	}
}

func newCluster(key string, members []service.MapPropertyData) Cluster {
	c := Cluster{
		ID:          "cluster-" + key,
		Geohash:     key,
		Count:       len(members),
		Size:        ClassifySize(len(members)),
		PropertyIDs: make([]int64, len(members)),
		MinPrice:    members[0].Price,
		MaxPrice:    members[0].Price,
	}
	var sumLat, sumLng float64
	c.Bound = orb.Bound{Min: members[0].LatLng().Point(), Max: members[0].LatLng().Point()}
	for i, m := range members {
		c.PropertyIDs[i] = m.ID
		sumLat += m.Latitude
		sumLng += m.Longitude
		c.Bound = c.Bound.Extend(m.LatLng().Point())
		if m.Price < c.MinPrice {
			c.MinPrice = m.Price
		}
		if m.Price > c.MaxPrice {
			c.MaxPrice = m.Price
		}
	}
	n := float64(len(members))
	c.Center = geo.LatLng{Lat: sumLat / n, Lng: sumLng / n}
	c.Label = fmt.Sprintf("Grupo de %d propiedades, acercar para ver", c.Count)
	return c
}

// MaxZoom is the deepest zoom a cluster will send the map to.
const MaxZoom = 22

// SplitZoom returns the next zoom after zoom that uses finer geohash cells.
func SplitZoom(zoom int) int {
	p := GeohashPrecision(zoom)
	for z := zoom + 1; z < MaxZoom; z++ {
		if GeohashPrecision(z) > p {
			return z
		}
	}
	return MaxZoom
}

// GeohashPrecision maps a map zoom level to a geohash cell length. Deeper
// zoom gives smaller cells.
func GeohashPrecision(zoom int) uint {
	switch {
	case zoom <= 5:
		return 2
	case zoom <= 8:
		return 3
	case zoom <= 11:
		return 4
	case zoom <= 14:
		return 5
	case zoom <= 16:
		return 6
	}
	return 7
}
