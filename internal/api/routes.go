// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/humastar"
	"github.com/joeblew999/propmap/internal/picker"
	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
	"github.com/joeblew999/propmap/internal/templates"
	"github.com/joeblew999/propmap/internal/tiles"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Map       *service.MapDataService
	Resolver  *service.ResponsiveResolver
	Layer     *render.Layer
	Templates *templates.Renderer
	Tiles     *tiles.Encoder
	// Geocoder is optional; the geocode routes answer 503 without it.
	Geocoder picker.Geocoder
	// MaxProperties caps list responses; zero means no cap.
	MaxProperties int
}

// Types

type IDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Property ID" example:"1"`
}

type PropertiesBody struct {
	Properties []service.MapPropertyData `json:"properties" doc:"Available properties with valid coordinates"`
	Bounds     *geo.MapBounds            `json:"bounds" doc:"Padded [[south, west], [north, east]] auto-fit bounds, null for fewer than two properties"`
	IsEmpty    bool                      `json:"isEmpty" doc:"True when the fetch succeeded with no properties"`
	Count      int                       `json:"count" doc:"Number of properties returned"`
}

// PropertyBody is a single property with its hypermedia actions.
type PropertyBody struct {
	service.MapPropertyData
	DetailURL string `json:"detailUrl" doc:"Listing page"`
}

// Actions links the property to its public listing page.
func (b PropertyBody) Actions() []humastar.Action {
	if b.DetailURL == "" {
		return nil
	}
	return []humastar.Action{{Rel: "alternate", Href: b.DetailURL, Method: http.MethodGet, Title: "Ver detalles"}}
}

type ConfigInput struct {
	Width int `query:"width" default:"-1" doc:"Viewport width in px; omit for the server-render default" example:"375"`
}

type MarkersInput struct {
	BBox   string `query:"bbox" doc:"Visible area as west,south,east,north; omit for everything" example:"-60.1,-29.5,-59.2,-28.8"`
	Zoom   int    `query:"zoom" minimum:"0" maximum:"22" default:"13" doc:"Map zoom level; picks the cluster cell size"`
	Format string `query:"format" enum:"geojson,html" default:"geojson" doc:"Output format"`
}

type MarkersOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type TileInput struct {
	Z int `path:"z" minimum:"0" maximum:"22" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Column"`
	Y int `path:"y" minimum:"0" doc:"Row"`
}

type TileOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

type GeocodeInput struct {
	Query string `query:"q" required:"true" minLength:"1" doc:"Free-form address" example:"San Martín 1050, Reconquista, Santa Fe"`
}

type ReverseInput struct {
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude" example:"-29.15"`
	Lng float64 `query:"lng" required:"true" minimum:"-180" maximum:"180" doc:"Longitude" example:"-59.65"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// ErrorBody is the response for failed map data requests. Type lets clients
// pick a message without parsing text.
type ErrorBody struct {
	Status  int               `json:"status" doc:"HTTP status code"`
	Type    service.ErrorKind `json:"type" doc:"Error kind"`
	Message string            `json:"message" doc:"Human-readable message"`
}

func (e *ErrorBody) Error() string  { return fmt.Sprintf("%s: %s", e.Type, e.Message) }
func (e *ErrorBody) GetStatus() int { return e.Status }

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterProperties registers the map data routes.
func (h *APIHandler) RegisterProperties(api huma.API) {
	huma.Get(api, "/api/v1/map/properties", h.GetProperties, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/properties/{id}", h.GetProperty, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/markers", h.GetMarkers, huma.OperationTags("map"))
}

// RegisterTiles registers the property vector tile route.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/map/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("map"),
		func(o *huma.Operation) {
			o.Summary = "Property vector tile"
			o.Description = "Available properties inside the tile as a Mapbox vector tile layer named \"properties\". Empty tiles have an empty body."
		})
}

// RegisterConfig registers the responsive configuration route.
func (h *APIHandler) RegisterConfig(api huma.API) {
	huma.Get(api, "/api/v1/map/config", h.GetConfig, huma.OperationTags("map"))
}

// RegisterGeocode registers the geocoding proxy routes.
func (h *APIHandler) RegisterGeocode(api huma.API) {
	huma.Get(api, "/api/v1/map/geocode", h.Geocode, huma.OperationTags("geocode"))
	huma.Get(api, "/api/v1/map/reverse", h.Reverse, huma.OperationTags("geocode"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetProperties(ctx context.Context, input *struct{}) (*struct{ Body PropertiesBody }, error) {
	props, err := h.properties(ctx)
	if err != nil {
		return nil, err
	}
	return &struct{ Body PropertiesBody }{Body: PropertiesBody{
		Properties: props,
		Bounds:     h.svc.Map.CalculateBounds(props),
		IsEmpty:    len(props) == 0,
		Count:      len(props),
	}}, nil
}

func (h *APIHandler) GetProperty(ctx context.Context, input *IDInput) (*struct{ Body PropertyBody }, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error503ServiceUnavailable("map data not available")
	}
	p, err := h.svc.Map.GetPropertyByID(ctx, input.ID)
	if err != nil {
		return nil, mapFailure(err)
	}
	if p == nil {
		return nil, &ErrorBody{
			Status:  http.StatusNotFound,
			Type:    service.NoData,
			Message: fmt.Sprintf("property %d is not on the map", input.ID),
		}
	}
	body := PropertyBody{MapPropertyData: *p}
	if h.svc.Layer != nil {
		body.DetailURL = h.svc.Layer.Popups().DetailURL(p.ID)
	}
	return &struct{ Body PropertyBody }{Body: body}, nil
}

func (h *APIHandler) GetConfig(ctx context.Context, input *ConfigInput) (*struct{ Body service.ResponsiveConfig }, error) {
	r := h.svc.Resolver
	if r == nil {
		r = service.NewResponsiveResolver(nil)
	}
	if input.Width < 0 {
		return &struct{ Body service.ResponsiveConfig }{Body: r.Default()}, nil
	}
	return &struct{ Body service.ResponsiveConfig }{Body: r.Resolve(input.Width)}, nil
}

func (h *APIHandler) GetMarkers(ctx context.Context, input *MarkersInput) (*MarkersOutput, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("marker layer not available")
	}
	view := render.View{Zoom: input.Zoom}
	if input.BBox != "" {
		b, err := parseBBox(input.BBox)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		view.Viewport = &b
	}

	r, err := render.NewRenderer(input.Format, h.svc.Templates)
	if err != nil {
		return nil, huma.Error503ServiceUnavailable(err.Error())
	}

	props, err := h.properties(ctx)
	if err != nil {
		return nil, err
	}
	out, err := r.Render(h.svc.Layer.Render(props, view))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to render markers", err)
	}
	return &MarkersOutput{ContentType: r.ContentType(), Body: out}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	if h.svc == nil || h.svc.Tiles == nil {
		return nil, huma.Error503ServiceUnavailable("vector tiles not available")
	}
	tile, err := tiles.Tile(input.Z, input.X, input.Y)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	props, err := h.properties(ctx)
	if err != nil {
		return nil, err
	}
	data, err := h.svc.Tiles.Encode(tile, props)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode tile", err)
	}
	return &TileOutput{ContentType: tiles.ContentType, CacheControl: "no-cache", Body: data}, nil
}

func (h *APIHandler) Geocode(ctx context.Context, input *GeocodeInput) (*struct{ Body geo.LatLng }, error) {
	if h.svc == nil || h.svc.Geocoder == nil {
		return nil, huma.Error503ServiceUnavailable("geocoder not configured")
	}
	at, err := h.svc.Geocoder.Geocode(ctx, input.Query)
	if err != nil {
		return nil, geocodeFailure(err)
	}
	return &struct{ Body geo.LatLng }{Body: at}, nil
}

func (h *APIHandler) Reverse(ctx context.Context, input *ReverseInput) (*struct{ Body picker.Address }, error) {
	if h.svc == nil || h.svc.Geocoder == nil {
		return nil, huma.Error503ServiceUnavailable("geocoder not configured")
	}
	addr, err := h.svc.Geocoder.Reverse(ctx, geo.LatLng{Lat: input.Lat, Lng: input.Lng})
	if err != nil {
		return nil, geocodeFailure(err)
	}
	return &struct{ Body picker.Address }{Body: addr}, nil
}

func (h *APIHandler) properties(ctx context.Context) ([]service.MapPropertyData, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error503ServiceUnavailable("map data not available")
	}
	props, err := h.svc.Map.GetMapProperties(ctx)
	if err != nil {
		return nil, mapFailure(err)
	}
	if h.svc.MaxProperties > 0 && len(props) > h.svc.MaxProperties {
		props = props[:h.svc.MaxProperties]
	}
	return props, nil
}

// mapFailure turns a map data error into a typed API error. Upstream failures
// are reported as 502, timeouts as 504.
func mapFailure(err error) error {
	var me *service.MapError
	if !errors.As(err, &me) {
		return huma.Error500InternalServerError("failed to load properties", err)
	}
	status := http.StatusBadGateway
	switch {
	case me.Kind == service.NoData:
		status = http.StatusNotFound
	case errors.Is(me, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	return &ErrorBody{Status: status, Type: me.Kind, Message: me.Message}
}

func geocodeFailure(err error) error {
	switch {
	case errors.Is(err, picker.ErrNotFound):
		return huma.Error404NotFound("location not found")
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("geocoder timed out")
	}
	return huma.Error502BadGateway("geocoder unavailable", err)
}

// parseBBox reads "west,south,east,north".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox needs 4 comma-separated numbers, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, fmt.Errorf("bbox value %q is not a finite number", p)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox must be west,south,east,north with west <= east and south <= north")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
