package render

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/propmap/internal/controller"
	"github.com/joeblew999/propmap/internal/service"
	"github.com/joeblew999/propmap/internal/templates"
)

// Output formats.
const (
	FormatHTML    = "html"
	FormatGeoJSON = "geojson"
)

// Renderer serialises a render pass. One is chosen at startup.
type Renderer interface {
	ContentType() string
	Render(res Result) ([]byte, error)
}

// NewRenderer returns the renderer for format. tmpl is only needed for HTML.
func NewRenderer(format string, tmpl *templates.Renderer) (Renderer, error) {
	switch format {
	case FormatHTML, "":
		if tmpl == nil {
			return nil, fmt.Errorf("html renderer needs templates")
		}
		return NewHTML(tmpl), nil
	case FormatGeoJSON:
		return GeoJSON{}, nil
	}
	return nil, fmt.Errorf("unknown render format %q", format)
}

// HTML renders accessible marker and status fragments.
type HTML struct {
	tmpl *templates.Renderer
}

// NewHTML wraps a template renderer.
func NewHTML(tmpl *templates.Renderer) *HTML {
	return &HTML{tmpl: tmpl}
}

func (h *HTML) ContentType() string { return "text/html; charset=utf-8" }

// Render renders the marker layer fragment.
func (h *HTML) Render(res Result) ([]byte, error) {
	s, err := h.tmpl.Render("map-layer", res)
	if err != nil {
		return nil, fmt.Errorf("render map layer: %w", err)
	}
	return []byte(s), nil
}

// Skeleton is shown while a fetch is in flight.
func (h *HTML) Skeleton() (string, error) {
	return h.tmpl.Render("map-skeleton", nil)
}

// Empty is shown when a fetch succeeded with no properties.
func (h *HTML) Empty() (string, error) {
	return h.tmpl.Render("map-empty", nil)
}

// Error is shown when a fetch failed. retryURL is posted by the retry button.
func (h *HTML) Error(err *service.MapError, retryURL string) (string, error) {
	return h.tmpl.Render("map-error", map[string]any{
		"Kind":     err.Kind,
		"Message":  err.Message,
		"RetryURL": retryURL,
	})
}

// Status picks the status fragment for a controller state.
func (h *HTML) Status(s controller.State, retryURL string) (string, error) {
	switch {
	case s.Loading:
		return h.Skeleton()
	case s.Error != nil:
		return h.Error(s.Error, retryURL)
	case s.IsEmpty:
		return h.Empty()
	}
	return h.tmpl.Render("map-ready", len(s.Properties))
}

// GeoJSON renders a FeatureCollection.
type GeoJSON struct{}

func (GeoJSON) ContentType() string { return "application/geo+json" }

func (GeoJSON) Render(res Result) ([]byte, error) {
	return FeatureCollection(res).MarshalJSON()
}

// FeatureCollection converts a render pass to GeoJSON points. Markers carry
// kind "marker", clusters kind "cluster" with a bbox.
func FeatureCollection(res Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range res.Markers {
		f := geojson.NewFeature(m.Property.LatLng().Point())
		f.ID = m.Property.ID
		f.Properties["kind"] = "marker"
		f.Properties["id"] = m.Property.ID
		f.Properties["title"] = m.Property.Title
		f.Properties["price"] = m.Property.Price
		f.Properties["currency"] = m.Property.Currency
		f.Properties["priceLabel"] = m.Popup.Price
		f.Properties["propertyType"] = m.Property.PropertyType
		f.Properties["operationType"] = m.Property.OperationType
		f.Properties["color"] = m.Color
		f.Properties["label"] = m.Label
		f.Properties["detailUrl"] = m.Popup.DetailURL
		if m.Popup.Image != "" {
			f.Properties["image"] = m.Popup.Image
			f.Properties["imageLoading"] = "lazy"
		}
		fc.Append(f)
	}
	for _, c := range res.Clusters {
		f := geojson.NewFeature(c.Center.Point())
		f.ID = c.ID
		f.BBox = geojson.NewBBox(c.Bound)
		f.Properties["kind"] = "cluster"
		f.Properties["geohash"] = c.Geohash
		f.Properties["count"] = c.Count
		f.Properties["size"] = string(c.Size)
		f.Properties["minPrice"] = c.MinPrice
		f.Properties["maxPrice"] = c.MaxPrice
		f.Properties["label"] = c.Label
		fc.Append(f)
	}
	return fc
}
