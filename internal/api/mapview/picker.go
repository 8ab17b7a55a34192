package mapview

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/humastar"
	"github.com/joeblew999/propmap/internal/picker"
	"github.com/joeblew999/propmap/internal/templates"
)

const emptyNotice = `<div id="picker-notice" class="picker-notice" role="status" aria-live="polite"></div>`

// PickerTTL is how long an untouched picker session is kept.
const PickerTTL = time.Hour

// PickerHandler serves the location picker of the property edit form. Each
// form gets a server-side picker so a pin placed while a lookup is running
// still wins.
type PickerHandler struct {
	humastar.Handler
	geocoder picker.Geocoder
	opts     []picker.Option
	sessions *registry[*picker.Picker]
	logger   *slog.Logger
}

// NewPickerHandler creates the picker handler. opts apply to every session.
func NewPickerHandler(geocoder picker.Geocoder, renderer *templates.Renderer, logger *slog.Logger, opts ...picker.Option) *PickerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PickerHandler{
		Handler:  humastar.Handler{Renderer: renderer, Logger: logger.With("component", "picker_view")},
		geocoder: geocoder,
		opts:     append(opts, picker.WithLogger(logger)),
		sessions: newRegistry[*picker.Picker](PickerTTL),
		logger:   logger.With("component", "picker_view"),
	}
}

func (h *PickerHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/picker", h.Open, huma.OperationTags("picker"))
	huma.Post(api, "/api/v1/picker/{id}/address", h.FromAddress, huma.OperationTags("picker"))
	huma.Post(api, "/api/v1/picker/{id}/map", h.FromMap, huma.OperationTags("picker"))
	huma.Post(api, "/api/v1/picker/{id}/pin", h.Pin, huma.OperationTags("picker"))
	huma.Post(api, "/api/v1/picker/{id}/reset", h.Reset, huma.OperationTags("picker"))
}

type PickerInput struct {
	ID      string `path:"id" doc:"Picker session ID"`
	RawBody []byte
}

// Open starts a picker session. Signals lat/lng seed the pin when the form
// edits a property that already has a location; fields seed the address.
func (h *PickerHandler) Open(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	opts := h.opts
	if signals.Has("lat") && signals.Has("lng") {
		opts = append(opts[:len(opts):len(opts)], picker.WithState(picker.State{
			Fields: fieldsFromSignals(signals),
			Pin:    geo.LatLng{Lat: signals.Float("lat"), Lng: signals.Float("lng")},
		}))
	}
	p := picker.New(h.geocoder, opts...)
	if !signals.Has("lat") {
		p.SetFields(fieldsFromSignals(signals))
	}
	id := uuid.NewString()
	h.sessions.put(id, p)

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"pickerid": id})
		h.pushState(sse, p.State())
		h.pushNotice(sse, nil)
	}), nil
}

// FromAddress geocodes the form fields and moves the pin.
func (h *PickerHandler) FromAddress(ctx context.Context, input *PickerInput) (*huma.StreamResponse, error) {
	p, signals, err := h.session(input)
	if err != nil {
		return nil, err
	}
	p.SetFields(fieldsFromSignals(signals))

	return h.Stream(func(sse humastar.SSE) {
		err := p.SyncFromAddress(ctx)
		h.pushState(sse, p.State())
		h.pushNotice(sse, err)
	}), nil
}

// FromMap reverse-geocodes the pin and fills the form fields.
func (h *PickerHandler) FromMap(ctx context.Context, input *PickerInput) (*huma.StreamResponse, error) {
	p, _, err := h.session(input)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		err := p.SyncFromMap(ctx)
		h.pushState(sse, p.State())
		h.pushNotice(sse, err)
	}), nil
}

// Pin places the pin where the user clicked or dropped it.
func (h *PickerHandler) Pin(ctx context.Context, input *PickerInput) (*huma.StreamResponse, error) {
	p, signals, err := h.session(input)
	if err != nil {
		return nil, err
	}
	if !signals.Has("lat") || !signals.Has("lng") {
		return nil, huma.Error400BadRequest("lat and lng are required")
	}
	at := geo.LatLng{Lat: signals.Float("lat"), Lng: signals.Float("lng")}

	return h.Stream(func(sse humastar.SSE) {
		err := p.PlacePin(at)
		h.pushState(sse, p.State())
		h.pushNotice(sse, err)
	}), nil
}

// Reset moves the pin back to the default center.
func (h *PickerHandler) Reset(ctx context.Context, input *PickerInput) (*huma.StreamResponse, error) {
	p, _, err := h.session(input)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		p.Reset()
		h.pushState(sse, p.State())
		h.pushNotice(sse, nil)
	}), nil
}

func (h *PickerHandler) session(input *PickerInput) (*picker.Picker, humastar.Signals, error) {
	p, ok := h.sessions.get(input.ID)
	if !ok {
		return nil, nil, huma.Error404NotFound("picker session not found")
	}
	signals, err := humastar.ParseSignals(input.RawBody)
	if err != nil {
		return nil, nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return p, signals, nil
}

func (h *PickerHandler) pushState(sse humastar.SSE, s picker.State) {
	sse.Signals(map[string]any{
		"lat":              s.Pin.Lat,
		"lng":              s.Pin.Lng,
		"address":          s.Fields.Address,
		"neighborhood":     s.Fields.Neighborhood,
		"city":             s.Fields.City,
		"province":         s.Fields.Province,
		"country":          s.Fields.Country,
		"formattedaddress": s.Formatted,
	})
	sse.Replace(h.Render("picker-pin", s.Pin), "#picker-pin")
}

// pushNotice shows the notice carried by err, or clears it.
func (h *PickerHandler) pushNotice(sse humastar.SSE, err error) {
	var n *picker.Notice
	if err != nil && !errors.As(err, &n) {
		h.logger.Error("picker sync failed", "error", err)
		n = &picker.Notice{Level: picker.LevelError, Message: err.Error()}
	}
	if n == nil {
		sse.Signals(map[string]any{"notice": "", "noticelevel": ""})
		sse.Replace(emptyNotice, "#picker-notice")
		return
	}
	sse.Signals(map[string]any{"notice": n.Message, "noticelevel": string(n.Level)})
	sse.Replace(h.Render("picker-notice", n), "#picker-notice")
}

func fieldsFromSignals(s humastar.Signals) picker.Fields {
	return picker.Fields{
		Address:      s.String("address"),
		Neighborhood: s.String("neighborhood"),
		City:         s.String("city"),
		Province:     s.String("province"),
		Country:      s.String("country"),
	}
}
