// Package server composes the property source, services and HTTP routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/text/language"

	"github.com/joeblew999/propmap/internal/api"
	"github.com/joeblew999/propmap/internal/api/mapview"
	"github.com/joeblew999/propmap/internal/config"
	"github.com/joeblew999/propmap/internal/controller"
	"github.com/joeblew999/propmap/internal/events"
	"github.com/joeblew999/propmap/internal/geocode"
	"github.com/joeblew999/propmap/internal/logging"
	"github.com/joeblew999/propmap/internal/picker"
	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
	"github.com/joeblew999/propmap/internal/store"
	"github.com/joeblew999/propmap/internal/templates"
	"github.com/joeblew999/propmap/internal/tiles"
)

// Property sources.
const (
	SourceDuckDB   = "duckdb"
	SourcePostgres = "postgres"
	SourceREST     = "rest"
)

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	WebDir string // optional: static assets and fragment overrides for development

	Source          string // duckdb, postgres or rest
	DataDir         string // duckdb; empty keeps the database in memory
	DatabaseURL     string // postgres
	PropertiesTable string // postgres
	RESTURL         string // rest
	RESTAPIKey      string // rest

	FetchTimeout    time.Duration
	RefreshInterval time.Duration
	RetainOnError   bool

	NominatimURL   string
	NominatimEmail string
	RedisAddr      string // empty disables the geocode cache
	RedisPassword  string
	RedisDB        int

	AMQPURL string // empty disables change notifications

	CORSOrigins []string
	RateLimit   int // requests per minute per client IP; zero disables

	Settings config.MapSettings
	Logger   *slog.Logger
}

// Server is the property map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	bus      *service.EventBus
	store    api.Pinger
	services *api.Services
	renderer *templates.Renderer
	mapView  *mapview.MapHandler
	consumer *events.Consumer
	closers  []func() error
	logger   *slog.Logger
}

// New wires the property source, services and routes.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Source == "" {
		cfg.Source = SourceDuckDB
	}
	settings := cfg.Settings
	if settings.ClusterThreshold == 0 {
		settings = config.Default()
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		bus:    service.NewEventBus(),
		logger: logger,
	}
	s.closers = append(s.closers, func() error { s.bus.Close(); return nil })

	source, err := s.openSource(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	renderer, err := templates.New()
	if err != nil {
		s.Close()
		return nil, err
	}
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, err := os.Stat(fragmentsDir); err == nil {
			if err := renderer.Reload(fragmentsDir); err != nil {
				logger.Warn("fragment override failed, using embedded templates", "dir", fragmentsDir, "error", err)
			} else {
				logger.Info("loaded fragment templates", "dir", fragmentsDir)
			}
		}
	}
	s.renderer = renderer

	lang, err := language.Parse(settings.Language)
	if err != nil {
		logger.Warn("unknown map language, using Spanish", "language", settings.Language)
		lang = language.Spanish
	}
	layer := render.NewLayer(
		render.WithThreshold(settings.ClusterThreshold),
		render.WithPalette(settings.Palette),
		render.WithPopups(render.NewPopupBuilder(settings.DetailURL, lang)),
	)

	s.services = &api.Services{
		Map: service.NewMapDataService(source,
			service.WithCountryBounds(settings.CountryBounds),
			service.WithWarningLimit(settings.WarningLimit),
			service.WithLogger(logger.With("component", "map_data")),
		),
		Resolver:      service.NewResponsiveResolver(settings.Tiers),
		Layer:         layer,
		Templates:     renderer,
		Tiles:         tiles.NewEncoder(settings.Palette),
		Geocoder:      s.newGeocoder(ctx),
		MaxProperties: settings.MaxProperties,
	}

	if cfg.AMQPURL != "" {
		consumer, err := events.NewConsumer(events.Config{URL: cfg.AMQPURL}, s.bus, logger)
		if err != nil {
			logger.Warn("change notifications disabled", "error", err)
		} else {
			s.consumer = consumer
			s.closers = append(s.closers, consumer.Close)
		}
	}

	humaConfig := huma.DefaultConfig("propmap API", "1.0.0")
	humaConfig.Info.Description = "Interactive property map: available listings, markers and clusters, responsive map settings and location picking."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.mapView = mapview.NewMapHandler(s.services.Map, layer, s.services.Resolver, renderer, controller.Options{
		Timeout:         cfg.FetchTimeout,
		RefreshInterval: cfg.RefreshInterval,
		MaxProperties:   settings.MaxProperties,
		RetainOnError:   cfg.RetainOnError,
		Changes:         s.bus,
		Logger:          logger,
	})

	s.routes(settings)
	s.handler = s.middleware(s.mux)
	return s, nil
}

func (s *Server) openSource(ctx context.Context) (service.PropertySource, error) {
	cfg := s.config
	switch cfg.Source {
	case SourceDuckDB:
		db, err := store.OpenDuckDB(ctx, store.DuckDBConfig{DataDir: cfg.DataDir, DBName: "propmap"})
		if err != nil {
			return nil, err
		}
		s.store = db
		s.closers = append(s.closers, db.Close)
		return db, nil
	case SourcePostgres:
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{DatabaseURL: cfg.DatabaseURL, Table: cfg.PropertiesTable})
		if err != nil {
			return nil, err
		}
		s.store = pg
		s.closers = append(s.closers, func() error { pg.Close(); return nil })
		return pg, nil
	case SourceREST:
		return store.NewREST(store.RESTConfig{BaseURL: cfg.RESTURL, APIKey: cfg.RESTAPIKey})
	}
	return nil, fmt.Errorf("unknown property source %q (want duckdb, postgres or rest)", cfg.Source)
}

func (s *Server) newGeocoder(ctx context.Context) picker.Geocoder {
	opts := []geocode.Option{geocode.WithLogger(s.logger)}
	if s.config.RedisAddr != "" {
		cache := geocode.NewRedisCache(s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB, "propmap:geocode:")
		if err := cache.Ping(ctx); err != nil {
			s.logger.Warn("geocode cache unavailable", "addr", s.config.RedisAddr, "error", err)
			cache.Close()
		} else {
			opts = append(opts, geocode.WithCache(cache))
			s.closers = append(s.closers, cache.Close)
		}
	}
	return geocode.NewNominatim(geocode.Config{
		BaseURL:      s.config.NominatimURL,
		Email:        s.config.NominatimEmail,
		CountryCodes: "ar",
	}, opts...)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	h := next
	if len(s.config.CORSOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Datastar-Request", logging.TraceHeader},
			ExposedHeaders:   []string{"Link", logging.TraceHeader},
			AllowCredentials: false,
			MaxAge:           300,
		})(h)
	}
	if s.config.RateLimit > 0 {
		h = httprate.LimitByIP(s.config.RateLimit, time.Minute)(h)
	}
	return logging.Middleware(s.logger)(h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start runs background workers until ctx is done.
func (s *Server) Start(ctx context.Context) {
	if s.consumer == nil {
		return
	}
	go func() {
		if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("change consumer stopped", "error", err)
		}
	}()
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services to commands that do not serve HTTP.
func (s *Server) Services() *api.Services {
	return s.services
}

// Bus is the property change bus map views refresh from.
func (s *Server) Bus() *service.EventBus {
	return s.bus
}

// Close closes server resources in reverse order of creation.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Server) routes(settings config.MapSettings) {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.Source, s.store, s.features()).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes for the map view and the location picker
	s.mapView.RegisterRoutes(s.humaAPI)
	mapview.NewPickerHandler(s.services.Geocoder, s.renderer, s.logger,
		picker.WithCountryBounds(settings.CountryBounds),
		picker.WithDefaultCenter(settings.DefaultCenter),
	).RegisterRoutes(s.humaAPI)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) features() []string {
	features := []string{"markers", "clusters", "vector-tiles", "picker"}
	if s.consumer != nil {
		features = append(features, "change-notifications")
	}
	if s.config.RefreshInterval > 0 {
		features = append(features, "auto-refresh")
	}
	return features
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "propmap",
		"status":  "running",
	})
}
