package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/geo"
)

type fakeSource struct {
	rows []RawProperty
	err  error
}

func (f *fakeSource) FetchAvailable(ctx context.Context) ([]RawProperty, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeSource) FetchByID(ctx context.Context, id int64) (*RawProperty, error) {
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

func ptr[T any](v T) *T { return &v }

func row(id int64, lat, lng float64) RawProperty {
	return RawProperty{
		ID:        id,
		Title:     ptr(fmt.Sprintf("Propiedad %d", id)),
		Price:     ptr(100000.0),
		Currency:  ptr("USD"),
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
		Status:    ptr(StatusAvailable),
	}
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestGetMapPropertiesDropsInvalidCoordinates(t *testing.T) {
	logger, logs := captureLogger()
	src := &fakeSource{rows: []RawProperty{
		row(1, -29.15, -59.65),
		row(2, 999, -59.65),
	}}
	svc := NewMapDataService(src, WithLogger(logger))

	props, err := svc.GetMapProperties(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int64(1), props[0].ID)
	assert.Contains(t, logs.String(), "skipping property with invalid coordinates")
	assert.Contains(t, logs.String(), "property_id=2")
}

func TestGetMapPropertiesKeepsOrder(t *testing.T) {
	logger, _ := captureLogger()
	src := &fakeSource{rows: []RawProperty{
		row(5, -34.6, -58.4),
		row(3, 10, 10),
		row(9, -31.4, -64.2),
		{ID: 4, Status: ptr(StatusAvailable)},
		row(1, -29.15, -59.65),
	}}
	svc := NewMapDataService(src, WithLogger(logger))

	props, err := svc.GetMapProperties(context.Background())
	require.NoError(t, err)

	var ids []int64
	for _, p := range props {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{5, 9, 1}, ids)
}

func TestGetMapPropertiesSummarisesManyDrops(t *testing.T) {
	logger, logs := captureLogger()
	var rows []RawProperty
	for i := 0; i < 25; i++ {
		rows = append(rows, row(int64(i), 50, 50))
	}
	svc := NewMapDataService(&fakeSource{rows: rows}, WithLogger(logger), WithWarningLimit(3))

	props, err := svc.GetMapProperties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, props)
	assert.Equal(t, 3, strings.Count(logs.String(), "skipping property with invalid coordinates"))
	assert.Contains(t, logs.String(), "dropped=25")
}

func TestGetMapPropertiesErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"transport", errors.New("connection refused"), NetworkError},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), NetworkError},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedPayload), LoadingError},
		{"schema", fmt.Errorf("check: %w", ErrInvalidPayload), ValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewMapDataService(&fakeSource{err: tt.err})
			props, err := svc.GetMapProperties(context.Background())
			assert.Nil(t, props)
			require.Error(t, err)

			var me *MapError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.kind, me.Kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGetMapPropertiesCancelledKeepsCause(t *testing.T) {
	svc := NewMapDataService(&fakeSource{err: context.Canceled})
	_, err := svc.GetMapProperties(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetPropertyByID(t *testing.T) {
	logger, _ := captureLogger()
	rented := row(3, -34.6, -58.4)
	rented.Status = ptr("rented")
	src := &fakeSource{rows: []RawProperty{
		row(1, -29.15, -59.65),
		row(2, 999, -59.65),
		rented,
	}}
	svc := NewMapDataService(src, WithLogger(logger))
	ctx := context.Background()

	p, err := svc.GetPropertyByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Propiedad 1", p.Title)

	for _, id := range []int64{2, 3, 42} {
		p, err := svc.GetPropertyByID(ctx, id)
		assert.NoError(t, err)
		assert.Nil(t, p, "id %d", id)
	}

	_, err = NewMapDataService(&fakeSource{err: errors.New("boom")}).GetPropertyByID(ctx, 1)
	assert.True(t, IsKind(err, NetworkError))
}

func TestServiceBoundsAndValidation(t *testing.T) {
	svc := NewMapDataService(&fakeSource{})

	b := svc.CalculateBounds([]MapPropertyData{
		{ID: 1, Latitude: -29.15, Longitude: -59.65},
		{ID: 2, Latitude: -29.20, Longitude: -59.70},
	})
	require.NotNil(t, b)
	assert.InDelta(t, -29.2025, b.SouthWest().Lat, 1e-9)
	assert.InDelta(t, -59.6475, b.NorthEast().Lng, 1e-9)
	assert.Nil(t, svc.CalculateBounds([]MapPropertyData{{ID: 1}}))

	assert.True(t, svc.ValidateCoordinates(ptr(-29.15), ptr(-59.65)))
	assert.False(t, svc.ValidateCoordinates(nil, ptr(-59.65)))

	custom := NewMapDataService(&fakeSource{}, WithCountryBounds(geo.CountryBounds{North: 1, South: -1, East: 1, West: -1}))
	assert.True(t, custom.ValidateCoordinates(ptr(0.0), ptr(0.0)))
	assert.False(t, custom.ValidateCoordinates(ptr(-29.15), ptr(-59.65)))
}
