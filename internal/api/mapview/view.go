package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/propmap/internal/controller"
	"github.com/joeblew999/propmap/internal/humastar"
	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
	"github.com/joeblew999/propmap/internal/templates"
)

// mapSession is one open map view. The stream goroutine and the viewport
// handler both read view, so it is guarded.
type mapSession struct {
	ctrl *controller.Controller
	mu   sync.Mutex
	view render.View
}

func (s *mapSession) View() render.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *mapSession) setView(v render.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// MapHandler streams map state to the browser. Every stream mounts its own
// controller, which is stopped when the client disconnects.
type MapHandler struct {
	humastar.Handler
	fetcher  controller.Fetcher
	layer    *render.Layer
	html     *render.HTML
	resolver *service.ResponsiveResolver
	opts     controller.Options
	sessions *registry[*mapSession]
	base     *slog.Logger
	logger   *slog.Logger
}

// NewMapHandler creates the map view handler. opts is the template for every
// session's controller.
func NewMapHandler(fetcher controller.Fetcher, layer *render.Layer, resolver *service.ResponsiveResolver, renderer *templates.Renderer, opts controller.Options) *MapHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = service.NewResponsiveResolver(nil)
	}
	return &MapHandler{
		Handler:  humastar.Handler{Renderer: renderer, Logger: logger.With("component", "map_view")},
		fetcher:  fetcher,
		layer:    layer,
		html:     render.NewHTML(renderer),
		resolver: resolver,
		opts:     opts,
		sessions: newRegistry[*mapSession](0),
		base:     logger,
		logger:   logger.With("component", "map_view"),
	}
}

func (h *MapHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/map/view", h.View, huma.OperationTags("mapview"))
	huma.Post(api, "/api/v1/map/view/{session}/refresh", h.Refresh, huma.OperationTags("mapview"))
	huma.Post(api, "/api/v1/map/view/{session}/viewport", h.Viewport, huma.OperationTags("mapview"))
}

// Sessions reports how many map views are open.
func (h *MapHandler) Sessions() int { return h.sessions.len() }

type ViewInput struct {
	Width int `query:"width" default:"-1" doc:"Viewport width in px; omit for the default tier"`
}

type SessionInput struct {
	Session string `path:"session" doc:"Map view session ID"`
}

type ViewportInput struct {
	Session string `path:"session" doc:"Map view session ID"`
	RawBody []byte
}

func refreshURL(id string) string {
	return fmt.Sprintf("/api/v1/map/view/%s/refresh", id)
}

// View opens a map view stream. It sends the responsive settings, then the
// status and marker fragments after every state change until the client goes
// away.
func (h *MapHandler) View(ctx context.Context, input *ViewInput) (*huma.StreamResponse, error) {
	cfg := h.resolver.Default()
	if input.Width >= 0 {
		cfg = h.resolver.Resolve(input.Width)
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			reqCtx := humaCtx.Context()

			id := uuid.NewString()
			opts := h.opts
			opts.Logger = h.base.With("session_id", id)
			sess := &mapSession{
				ctrl: controller.New(h.fetcher, opts),
				view: render.View{Zoom: cfg.DefaultZoom},
			}
			h.sessions.put(id, sess)
			defer h.sessions.remove(id)

			updates := sess.ctrl.Subscribe()
			sess.ctrl.Start(reqCtx)
			defer sess.ctrl.Stop()

			h.logger.Info("map view opened", "session_id", id, "tier", cfg.Tier)
			sse.Signals(map[string]any{
				"sessionid":   id,
				"selected":    0,
				"tier":        cfg.Tier,
				"height":      cfg.Height,
				"zoom":        cfg.DefaultZoom,
				"controlsize": string(cfg.ControlSize),
				"attribution": cfg.ShowAttribution,
			})

			for state := range updates {
				h.push(sse, sess, state, refreshURL(id))
			}
			h.logger.Info("map view closed", "session_id", id)
		},
	}, nil
}

// Refresh re-fetches the properties of an open view. It backs the retry
// button of the error fragment.
func (h *MapHandler) Refresh(ctx context.Context, input *SessionInput) (*struct{}, error) {
	sess, ok := h.sessions.get(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("map view not found")
	}
	sess.ctrl.Refresh()
	return &struct{}{}, nil
}

// Viewport records the visible area and zoom of a view and answers with the
// marker layer for it.
func (h *MapHandler) Viewport(ctx context.Context, input *ViewportInput) (*huma.StreamResponse, error) {
	sess, ok := h.sessions.get(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("map view not found")
	}
	signals, err := humastar.ParseSignals(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	view, err := viewFromSignals(signals, sess.View())
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	sess.setView(view)

	return h.Stream(func(sse humastar.SSE) {
		state := sess.ctrl.State()
		if state.Status != controller.StatusReady {
			return
		}
		h.pushLayer(sse, state.Properties, view)
	}), nil
}

func (h *MapHandler) push(sse humastar.SSE, sess *mapSession, state controller.State, retryURL string) {
	status, err := h.html.Status(state, retryURL)
	if err != nil {
		h.logger.Error("render map status", "error", err)
		return
	}
	sse.Replace(status, "#map-status")

	signals := map[string]any{
		"loading": state.Loading,
		"count":   len(state.Properties),
		"empty":   state.IsEmpty,
	}
	if state.Bounds != nil {
		signals["bounds"] = state.Bounds
	}
	if state.Error != nil {
		signals["errortype"] = string(state.Error.Kind)
	} else {
		signals["errortype"] = ""
	}
	sse.Signals(signals)

	// Loading keeps the previous markers on screen.
	if state.Loading {
		return
	}
	h.pushLayer(sse, state.Properties, sess.View())
}

func (h *MapHandler) pushLayer(sse humastar.SSE, props []service.MapPropertyData, view render.View) {
	out, err := h.html.Render(h.layer.Render(props, view))
	if err != nil {
		h.logger.Error("render map layer", "error", err)
		return
	}
	sse.Replace(string(out), "#map-layer")
}

// viewFromSignals reads west/south/east/north and zoom. A view without all
// four edges shows everything.
func viewFromSignals(s humastar.Signals, current render.View) (render.View, error) {
	v := current
	if s.Has("zoom") {
		v.Zoom = s.Int("zoom")
	}
	if !(s.Has("west") && s.Has("south") && s.Has("east") && s.Has("north")) {
		v.Viewport = nil
		return v, nil
	}
	b := orb.Bound{
		Min: orb.Point{s.Float("west"), s.Float("south")},
		Max: orb.Point{s.Float("east"), s.Float("north")},
	}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return current, fmt.Errorf("viewport edges are inverted")
	}
	v.Viewport = &b
	return v, nil
}
