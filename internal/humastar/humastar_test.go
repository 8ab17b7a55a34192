package humastar

import (
	"bytes"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/propmap/internal/templates"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"address":"San Martín 1050","lat":-29.15,"zoom":13}`))
	require.NoError(t, err)

	assert.Equal(t, "San Martín 1050", s.String("address"))
	assert.Equal(t, -29.15, s.Float("lat"))
	assert.Equal(t, 13, s.Int("zoom"))
	assert.Equal(t, 13.0, s.Float("zoom"))
	assert.True(t, s.Has("lat"))
	assert.False(t, s.Has("lng"))
	assert.Equal(t, "", s.String("lat"))

	empty, err := ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseSignals([]byte(`{nope`))
	assert.Error(t, err)
}

func TestSignalsInputMustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`[`)}
	_, err := in.MustParse()
	assert.ErrorContains(t, err, "Invalid request data")
}

func TestActionLinkHeader(t *testing.T) {
	a := Action{Rel: "alternate", Href: "/propiedades/3", Method: "GET", Title: "Ver detalles"}
	assert.Equal(t, `</propiedades/3>; rel="alternate"; method="GET"; title="Ver detalles"`, a.LinkHeader())
	assert.Equal(t, `</x>; rel="next"`, Action{Rel: "next", Href: "/x"}.LinkHeader())
}

func TestHandlerRenderLogsFailure(t *testing.T) {
	r, err := templates.NewFS(fstest.MapFS{
		"f.html": {Data: []byte(`{{define "greet"}}hola {{.Name}}{{end}}`)},
	}, "*.html")
	require.NoError(t, err)

	var buf bytes.Buffer
	h := Handler{Renderer: r, Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	assert.Equal(t, "hola Ana", h.Render("greet", map[string]string{"Name": "Ana"}))
	assert.Empty(t, buf.String())

	assert.Equal(t, "", h.Render("missing", nil))
	assert.Contains(t, buf.String(), "render fragment failed")
	assert.Contains(t, buf.String(), "template=missing")
}
