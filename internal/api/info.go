package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type InfoHandler struct {
	source   string
	store    Pinger
	features []string
}

// NewInfoHandler describes the running service. store may be nil for sources
// without a health check.
func NewInfoHandler(source string, store Pinger, features []string) *InfoHandler {
	return &InfoHandler{source: source, store: store, features: features}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Source   string   `json:"source" doc:"Property source backend" example:"duckdb"`
	StoreOK  bool     `json:"storeOk" doc:"Whether the property source answered a ping"`
	Features []string `json:"features" doc:"Enabled optional features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	ok := h.store == nil || h.store.Ping(ctx) == nil
	features := h.features
	if features == nil {
		features = []string{}
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "propmap",
		Version:  "0.1.0",
		Source:   h.source,
		StoreOK:  ok,
		Features: features,
	}}, nil
}
