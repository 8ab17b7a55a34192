package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Poster is the part of *fluent.Fluent the handler needs.
type Poster interface {
	Post(tag string, message any) error
}

// FluentHandler is a slog.Handler that posts each record as a flat map.
// Grouped attributes are flattened to dotted keys.
type FluentHandler struct {
	client Poster
	tag    string
	level  slog.Leveler
	attrs  map[string]any
	prefix string
}

// NewFluentHandler posts records at or above level under tag.<level>.
func NewFluentHandler(client Poster, tag string, level slog.Leveler) *FluentHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &FluentHandler{client: client, tag: tag, level: level, attrs: map[string]any{}}
}

func (h *FluentHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *FluentHandler) Handle(_ context.Context, r slog.Record) error {
	data := make(map[string]any, len(h.attrs)+r.NumAttrs()+3)
	for k, v := range h.attrs {
		data[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, h.prefix, a)
		return true
	})
	level := strings.ToLower(r.Level.String())
	data["level"] = level
	data["message"] = r.Message
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	data["timestamp"] = ts.UTC().Format(time.RFC3339Nano)

	return h.client.Post(h.tag+"."+level, data)
}

func (h *FluentHandler) WithAttrs(as []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range as {
		addAttr(next.attrs, h.prefix, a)
	}
	return next
}

func (h *FluentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *FluentHandler) clone() *FluentHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &FluentHandler{client: h.client, tag: h.tag, level: h.level, attrs: attrs, prefix: h.prefix}
}

func addAttr(data map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	switch v.Kind() {
	case slog.KindGroup:
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(data, p, ga)
		}
	case slog.KindTime:
		data[prefix+a.Key] = v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		data[prefix+a.Key] = v.Duration().String()
	default:
		if err, ok := v.Any().(error); ok {
			data[prefix+a.Key] = err.Error()
			return
		}
		data[prefix+a.Key] = v.Any()
	}
}
