package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/picker"
	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
	"github.com/joeblew999/propmap/internal/templates"
	"github.com/joeblew999/propmap/internal/tiles"
)

type fakeSource struct {
	rows []service.RawProperty
	err  error
}

func (f *fakeSource) FetchAvailable(ctx context.Context) ([]service.RawProperty, error) {
	return f.rows, f.err
}

func (f *fakeSource) FetchByID(ctx context.Context, id int64) (*service.RawProperty, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(ctx context.Context, q string) (geo.LatLng, error) {
	if strings.Contains(q, "Reconquista") {
		return geo.LatLng{Lat: -29.15, Lng: -59.65}, nil
	}
	return geo.LatLng{}, picker.ErrNotFound
}

func (fakeGeocoder) Reverse(ctx context.Context, p geo.LatLng) (picker.Address, error) {
	return picker.Address{City: "Reconquista", Province: "Santa Fe", Country: "Argentina"}, nil
}

func ptr[T any](v T) *T { return &v }

func rows(n int) []service.RawProperty {
	out := make([]service.RawProperty, n)
	for i := range out {
		out[i] = service.RawProperty{
			ID:        int64(i + 1),
			Title:     ptr(fmt.Sprintf("Casa %d", i+1)),
			Price:     ptr(90000.0),
			Latitude:  ptr(-29.15 + float64(i)*0.001),
			Longitude: ptr(-59.65 + float64(i)*0.001),
			Status:    ptr(service.StatusAvailable),
		}
	}
	return out
}

func newTestAPI(t *testing.T, src service.PropertySource) http.Handler {
	t.Helper()
	tmpl, err := templates.New()
	require.NoError(t, err)

	mux := http.NewServeMux()
	cfg := huma.DefaultConfig("propmap test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	api := humago.New(mux, cfg)

	huma.AutoRegister(api, NewAPIHandler(&Services{
		Map:       service.NewMapDataService(src),
		Resolver:  service.NewResponsiveResolver(nil),
		Layer:     render.NewLayer(),
		Templates: tmpl,
		Tiles:     tiles.NewEncoder(render.DefaultPalette()),
		Geocoder:  fakeGeocoder{},
	}))
	NewInfoHandler("memory", nil, []string{"geocode"}).RegisterRoutes(api)
	return mux
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndInfo(t *testing.T) {
	h := newTestAPI(t, &fakeSource{})

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, strings.Join(rec.Header().Values("Link"), ","), `rel="info"`)

	rec = get(t, h, "/api/v1/info")
	require.Equal(t, http.StatusOK, rec.Code)
	var info InfoBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "propmap", info.Name)
	assert.True(t, info.StoreOK)
	assert.Equal(t, []string{"geocode"}, info.Features)
}

func TestGetProperties(t *testing.T) {
	src := &fakeSource{rows: rows(3)}
	src.rows = append(src.rows, service.RawProperty{ID: 99, Latitude: ptr(40.4), Longitude: ptr(-3.7)})
	h := newTestAPI(t, src)

	rec := get(t, h, "/api/v1/map/properties")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body PropertiesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.False(t, body.IsEmpty)
	require.NotNil(t, body.Bounds)
	for _, p := range body.Properties {
		assert.NotEqual(t, int64(99), p.ID)
	}
}

func TestGetPropertiesEmpty(t *testing.T) {
	h := newTestAPI(t, &fakeSource{})

	rec := get(t, h, "/api/v1/map/properties")
	require.Equal(t, http.StatusOK, rec.Code)
	var body PropertiesBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.IsEmpty)
	assert.Nil(t, body.Bounds)
	assert.NotNil(t, body.Properties)
}

func TestGetPropertiesUpstreamFailure(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   service.ErrorKind
	}{
		{errors.New("connection refused"), http.StatusBadGateway, service.NetworkError},
		{fmt.Errorf("decode: %w", service.ErrMalformedPayload), http.StatusBadGateway, service.LoadingError},
		{fmt.Errorf("schema: %w", service.ErrInvalidPayload), http.StatusBadGateway, service.ValidationError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, service.NetworkError},
	}
	for _, tt := range tests {
		h := newTestAPI(t, &fakeSource{err: tt.err})
		rec := get(t, h, "/api/v1/map/properties")
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.kind, body.Type)
	}
}

func TestGetPropertyByID(t *testing.T) {
	h := newTestAPI(t, &fakeSource{rows: rows(2)})

	rec := get(t, h, "/api/v1/map/properties/2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body PropertyBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.ID)
	assert.Equal(t, "/propiedades/2", body.DetailURL)

	linkHeader := strings.Join(rec.Header().Values("Link"), ",")
	assert.Contains(t, linkHeader, `</propiedades/2>; rel="alternate"`)
	assert.Contains(t, linkHeader, `rel="self"`)
	assert.Contains(t, linkHeader, `rel="collection"`)

	rec = get(t, h, "/api/v1/map/properties/404")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var missing ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &missing))
	assert.Equal(t, service.NoData, missing.Type)
}

func TestGetConfig(t *testing.T) {
	h := newTestAPI(t, &fakeSource{})

	var cfg service.ResponsiveConfig
	rec := get(t, h, "/api/v1/map/config?width=375")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "mobile", cfg.Tier)
	assert.Equal(t, service.ControlsLarge, cfg.ControlSize)

	rec = get(t, h, "/api/v1/map/config")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "desktop", cfg.Tier)
}

func TestGetMarkers(t *testing.T) {
	h := newTestAPI(t, &fakeSource{rows: rows(60)})

	rec := get(t, h, "/api/v1/map/markers?zoom=10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"kind":"cluster"`)

	// A viewport holding a handful of properties stays below the threshold.
	rec = get(t, h, "/api/v1/map/markers?bbox=-59.6505,-29.1505,-59.6475,-29.1475")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), `"kind":"cluster"`)
	assert.Contains(t, rec.Body.String(), `"kind":"marker"`)

	rec = get(t, h, "/api/v1/map/markers?format=html&bbox=-59.6505,-29.1505,-59.6475,-29.1475")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="button"`)

	rec = get(t, h, "/api/v1/map/markers?bbox=1,2,3")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = get(t, h, "/api/v1/map/markers?bbox=NaN,-30,-59,-29")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetTile(t *testing.T) {
	h := newTestAPI(t, &fakeSource{rows: rows(3)})

	rec := get(t, h, "/api/v1/map/tiles/0/0/0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, tiles.ContentType, rec.Header().Get("Content-Type"))
	layers, err := mvt.Unmarshal(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Len(t, layers[0].Features, 3)

	// Far north-west corner: no properties.
	rec = get(t, h, "/api/v1/map/tiles/4/0/0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = get(t, h, "/api/v1/map/tiles/2/9/0")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGeocodeProxy(t *testing.T) {
	h := newTestAPI(t, &fakeSource{})

	rec := get(t, h, "/api/v1/map/geocode?q=Reconquista")
	require.Equal(t, http.StatusOK, rec.Code)
	var at geo.LatLng
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &at))
	assert.Equal(t, -29.15, at.Lat)

	rec = get(t, h, "/api/v1/map/geocode?q=Atlantis")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/v1/map/reverse?lat=-29.15&lng=-59.65")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reconquista")

	rec = get(t, h, "/api/v1/map/reverse?lat=-129&lng=-59.65")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("-60, -30, -59, -29")
	require.NoError(t, err)
	assert.Equal(t, -60.0, b.Min[0])
	assert.Equal(t, -29.0, b.Max[1])

	_, err = parseBBox("-59,-30,-60,-29")
	assert.Error(t, err)
	_, err = parseBBox("a,b,c,d")
	assert.Error(t, err)

	for _, bad := range []string{"NaN,-30,-59,-29", "-60,-30,+Inf,-29", "-Inf,-30,-59,-29", "-60,nan,-59,-29"} {
		_, err = parseBBox(bad)
		assert.ErrorContains(t, err, "finite", bad)
	}
}
