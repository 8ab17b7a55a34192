// Package picker keeps an address form and a map pin in step during property
// editing. Both directions are explicit user actions; a pin the user places
// by hand is never overwritten by a sync that started before it.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/joeblew999/propmap/internal/geo"
)

// DefaultCenter is Reconquista, Santa Fe.
var DefaultCenter = geo.LatLng{Lat: -29.15, Lng: -59.65}

var (
	// ErrNotFound is returned by a Geocoder when nothing matches.
	ErrNotFound = errors.New("location not found")
	// ErrSuperseded marks a sync result dropped because the pin moved.
	ErrSuperseded = errors.New("pin moved during sync")
	// ErrOutOfBounds marks a coordinate outside the country box.
	ErrOutOfBounds = errors.New("coordinate outside country bounds")
	// ErrEmptyQuery is returned when there is no address to look up.
	ErrEmptyQuery = errors.New("empty address")
)

// Address is a reverse-geocoding result.
type Address struct {
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	Province     string `json:"province"`
	Country      string `json:"country"`
	Formatted    string `json:"formatted_address"`
}

// Geocoder resolves addresses to coordinates and back.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.LatLng, error)
	Reverse(ctx context.Context, p geo.LatLng) (Address, error)
}

// Fields are the editable address inputs.
type Fields struct {
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	Province     string `json:"province"`
	Country      string `json:"country"`
}

// Query joins the non-empty fields with ", ".
func (f Fields) Query() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{f.Address, f.Neighborhood, f.City, f.Province, f.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// State is the picker's current form and pin.
type State struct {
	Fields     Fields     `json:"fields"`
	Formatted  string     `json:"formatted_address"`
	Pin        geo.LatLng `json:"pin"`
	PinVersion uint64     `json:"pin_version"`
}

// Option configures a Picker.
type Option func(*Picker)

// WithCountryBounds sets the box geocode results must fall in.
func WithCountryBounds(b geo.CountryBounds) Option {
	return func(p *Picker) { p.bounds = b }
}

// WithDefaultCenter sets where Reset moves the pin.
func WithDefaultCenter(c geo.LatLng) Option {
	return func(p *Picker) { p.center = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Picker) { p.logger = l }
}

// WithState seeds the picker, e.g. from an existing property.
func WithState(s State) Option {
	return func(p *Picker) { p.state = s }
}

// Picker is one editing session's form/pin pair. It is safe for concurrent use.
type Picker struct {
	geocoder Geocoder
	bounds   geo.CountryBounds
	center   geo.LatLng
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a picker with the pin on the default center.
func New(g Geocoder, opts ...Option) *Picker {
	p := &Picker{
		geocoder: g,
		bounds:   geo.Argentina,
		center:   DefaultCenter,
		logger:   slog.Default(),
	}
	p.state.Pin = p.center
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "location_picker")
	return p
}

// State returns a copy of the current state.
func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetFields replaces the address inputs as typed by the user.
func (p *Picker) SetFields(f Fields) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Fields = f
}

// PlacePin moves the pin where the user dropped or clicked it. The pin always
// moves; a warning notice is returned when it lands outside the country box.
func (p *Picker) PlacePin(at geo.LatLng) error {
	if math.IsNaN(at.Lat) || math.IsNaN(at.Lng) || math.Abs(at.Lat) > 90 || math.Abs(at.Lng) > 180 {
		return &Notice{Level: LevelError, Message: msgBadCoordinate, Err: ErrOutOfBounds}
	}
	p.mu.Lock()
	p.state.Pin = at
	p.state.PinVersion++
	p.mu.Unlock()

	if !p.bounds.Contains(at.Lat, at.Lng) {
		return &Notice{Level: LevelWarning, Message: msgPinOutside, Err: ErrOutOfBounds}
	}
	return nil
}

// Reset moves the pin back to the default center without a lookup.
func (p *Picker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Pin = p.center
	p.state.PinVersion++
}

// SyncFromAddress geocodes the joined address fields and moves the pin to the
// result when it lies inside the country box. On any failure the pin and
// fields are untouched and a *Notice is returned.
func (p *Picker) SyncFromAddress(ctx context.Context) error {
	p.mu.Lock()
	query := p.state.Fields.Query()
	version := p.state.PinVersion
	p.mu.Unlock()

	if query == "" {
		return &Notice{Level: LevelWarning, Message: msgEmptyQuery, Err: ErrEmptyQuery}
	}

	at, err := p.geocoder.Geocode(ctx, query)
	if err != nil {
		p.logger.Info("geocode failed", "query", query, "error", err)
		return lookupNotice(err, msgAddressNotFound)
	}
	if !p.bounds.Contains(at.Lat, at.Lng) {
		p.logger.Info("geocode result outside country bounds", "query", query, "lat", at.Lat, "lng", at.Lng)
		return &Notice{Level: LevelWarning, Message: msgAddressOutside, Err: ErrOutOfBounds}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.PinVersion != version {
		return &Notice{Level: LevelInfo, Message: msgSuperseded, Err: ErrSuperseded}
	}
	p.state.Pin = at
	p.state.PinVersion++
	return nil
}

// SyncFromMap reverse-geocodes the pin and fills the address fields. On
// failure the fields are untouched and a *Notice is returned.
func (p *Picker) SyncFromMap(ctx context.Context) error {
	p.mu.Lock()
	pin := p.state.Pin
	version := p.state.PinVersion
	p.mu.Unlock()

	addr, err := p.geocoder.Reverse(ctx, pin)
	if err != nil {
		p.logger.Info("reverse geocode failed", "lat", pin.Lat, "lng", pin.Lng, "error", err)
		return lookupNotice(err, msgPinNotFound)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.PinVersion != version {
		return &Notice{Level: LevelInfo, Message: msgSuperseded, Err: ErrSuperseded}
	}
	p.state.Fields = Fields{
		Address:      addr.Address,
		Neighborhood: addr.Neighborhood,
		City:         addr.City,
		Province:     addr.Province,
		Country:      addr.Country,
	}
	p.state.Formatted = addr.Formatted
	return nil
}

func lookupNotice(err error, notFound string) *Notice {
	switch {
	case errors.Is(err, ErrNotFound):
		return &Notice{Level: LevelWarning, Message: notFound, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Notice{Level: LevelInfo, Message: msgCancelled, Err: err}
	}
	return &Notice{Level: LevelError, Message: msgUnavailable, Err: fmt.Errorf("geocoder: %w", err)}
}
