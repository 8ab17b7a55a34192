// Package logging builds the service's slog logger: a colour console handler
// for humans, optionally fanned out to Fluent Bit for collection.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// Config selects the handlers.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // tint (default), text, json
	AddSource bool
	Writer    io.Writer // defaults to os.Stdout

	FluentHost string // empty disables fluent
	FluentPort int
	FluentTag  string // tag prefix; records go to <tag>.<level>
}

// ParseLevel maps a name to a slog level; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds the logger. The returned close func flushes and closes the
// fluent connection, if any.
func New(cfg Config) (*slog.Logger, func() error, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	level := ParseLevel(cfg.Level)

	var console slog.Handler
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	switch cfg.Format {
	case "json":
		console = slog.NewJSONHandler(cfg.Writer, opts)
	case "text":
		console = slog.NewTextHandler(cfg.Writer, opts)
	default:
		console = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
		})
	}

	closeFn := func() error { return nil }
	handler := console
	if cfg.FluentHost != "" {
		client, err := fluent.New(fluent.Config{
			FluentHost: cfg.FluentHost,
			FluentPort: cfg.FluentPort,
			Async:      true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect fluent: %w", err)
		}
		tag := cfg.FluentTag
		if tag == "" {
			tag = "propmap"
		}
		handler = NewMultiHandler(console, NewFluentHandler(client, tag, level))
		closeFn = client.Close
	}

	return slog.New(handler).With("service", "propmap"), closeFn, nil
}
