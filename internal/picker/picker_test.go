package picker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/geo"
)

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	reverse []geo.LatLng

	at      geo.LatLng
	addr    Address
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeGeocoder) wait() {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (geo.LatLng, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	f.wait()
	return f.at, f.err
}

func (f *fakeGeocoder) Reverse(ctx context.Context, p geo.LatLng) (Address, error) {
	f.mu.Lock()
	f.reverse = append(f.reverse, p)
	f.mu.Unlock()
	f.wait()
	return f.addr, f.err
}

func requireNotice(t *testing.T, err error) *Notice {
	t.Helper()
	var n *Notice
	require.ErrorAs(t, err, &n)
	assert.NotEmpty(t, n.Message)
	return n
}

func TestFieldsQuery(t *testing.T) {
	f := Fields{Address: " San Martín 1234 ", City: "Reconquista", Province: "Santa Fe", Country: "Argentina"}
	assert.Equal(t, "San Martín 1234, Reconquista, Santa Fe, Argentina", f.Query())
	assert.Equal(t, "", Fields{Neighborhood: "  "}.Query())
}

func TestSyncFromAddressMovesPin(t *testing.T) {
	g := &fakeGeocoder{at: geo.LatLng{Lat: -29.14, Lng: -59.64}}
	p := New(g)
	p.SetFields(Fields{Address: "Habegger 1000", City: "Reconquista"})

	require.NoError(t, p.SyncFromAddress(context.Background()))
	assert.Equal(t, geo.LatLng{Lat: -29.14, Lng: -59.64}, p.State().Pin)
	assert.Equal(t, []string{"Habegger 1000, Reconquista"}, g.queries)
}

func TestSyncFromAddressOutsideCountryLeavesState(t *testing.T) {
	g := &fakeGeocoder{at: geo.LatLng{Lat: 40.71, Lng: -74.00}}
	p := New(g)
	fields := Fields{Address: "Broadway 1", City: "New York"}
	p.SetFields(fields)
	before := p.State()

	err := p.SyncFromAddress(context.Background())
	n := requireNotice(t, err)
	assert.Equal(t, LevelWarning, n.Level)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	after := p.State()
	assert.Equal(t, before.Pin, after.Pin)
	assert.Equal(t, fields, after.Fields)
	assert.Equal(t, before.PinVersion, after.PinVersion)
}

func TestSyncFromAddressFailures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level NoticeLevel
	}{
		{"not found", ErrNotFound, LevelWarning},
		{"service down", errors.New("503"), LevelError},
		{"cancelled", context.Canceled, LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeGeocoder{err: tt.err})
			p.SetFields(Fields{Address: "x"})
			err := p.SyncFromAddress(context.Background())
			assert.Equal(t, tt.level, requireNotice(t, err).Level)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, DefaultCenter, p.State().Pin)
		})
	}
}

func TestSyncFromAddressEmptyQuerySkipsLookup(t *testing.T) {
	g := &fakeGeocoder{}
	err := New(g).SyncFromAddress(context.Background())
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, g.queries)
}

func TestSyncFromMapFillsFields(t *testing.T) {
	g := &fakeGeocoder{addr: Address{
		Address:      "Habegger 1000",
		Neighborhood: "Centro",
		City:         "Reconquista",
		Province:     "Santa Fe",
		Country:      "Argentina",
		Formatted:    "Habegger 1000, Reconquista, Santa Fe, Argentina",
	}}
	p := New(g)
	require.NoError(t, p.PlacePin(geo.LatLng{Lat: -29.145, Lng: -59.645}))

	require.NoError(t, p.SyncFromMap(context.Background()))
	s := p.State()
	assert.Equal(t, "Habegger 1000", s.Fields.Address)
	assert.Equal(t, "Centro", s.Fields.Neighborhood)
	assert.Equal(t, "Reconquista", s.Fields.City)
	assert.Equal(t, "Santa Fe", s.Fields.Province)
	assert.Equal(t, "Habegger 1000, Reconquista, Santa Fe, Argentina", s.Formatted)
	assert.Equal(t, []geo.LatLng{{Lat: -29.145, Lng: -59.645}}, g.reverse)
}

func TestSyncFromMapFailureKeepsFields(t *testing.T) {
	p := New(&fakeGeocoder{err: ErrNotFound})
	fields := Fields{Address: "typed by hand"}
	p.SetFields(fields)

	err := p.SyncFromMap(context.Background())
	requireNotice(t, err)
	assert.Equal(t, fields, p.State().Fields)
}

func TestResetReturnsToCenter(t *testing.T) {
	g := &fakeGeocoder{}
	p := New(g, WithDefaultCenter(geo.LatLng{Lat: -31.63, Lng: -60.70}))
	require.NoError(t, p.PlacePin(geo.LatLng{Lat: -34.6, Lng: -58.4}))

	p.Reset()
	assert.Equal(t, geo.LatLng{Lat: -31.63, Lng: -60.70}, p.State().Pin)
	assert.Empty(t, g.queries)
	assert.Empty(t, g.reverse)
}

func TestPlacePin(t *testing.T) {
	p := New(&fakeGeocoder{})
	err := p.PlacePin(geo.LatLng{Lat: 48.85, Lng: 2.35})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, geo.LatLng{Lat: 48.85, Lng: 2.35}, p.State().Pin)

	err = p.PlacePin(geo.LatLng{Lat: 100, Lng: 0})
	assert.Equal(t, LevelError, requireNotice(t, err).Level)
	assert.Equal(t, geo.LatLng{Lat: 48.85, Lng: 2.35}, p.State().Pin)
}

func TestManualPinWinsOverAddressSync(t *testing.T) {
	g := &fakeGeocoder{
		at:      geo.LatLng{Lat: -29.14, Lng: -59.64},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := New(g)
	p.SetFields(Fields{Address: "Habegger 1000"})

	done := make(chan error, 1)
	go func() { done <- p.SyncFromAddress(context.Background()) }()
	<-g.started

	manual := geo.LatLng{Lat: -29.20, Lng: -59.70}
	require.NoError(t, p.PlacePin(manual))
	close(g.release)

	err := <-done
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, manual, p.State().Pin)
}

func TestManualPinWinsOverMapSync(t *testing.T) {
	g := &fakeGeocoder{
		addr:    Address{Address: "old place"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := New(g)

	done := make(chan error, 1)
	go func() { done <- p.SyncFromMap(context.Background()) }()
	<-g.started

	require.NoError(t, p.PlacePin(geo.LatLng{Lat: -29.20, Lng: -59.70}))
	close(g.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Empty(t, p.State().Fields.Address)
}

func TestWithStateSeedsPicker(t *testing.T) {
	seed := State{Fields: Fields{City: "Avellaneda"}, Pin: geo.LatLng{Lat: -29.12, Lng: -59.66}}
	p := New(&fakeGeocoder{}, WithState(seed))
	assert.Equal(t, seed, p.State())
}
