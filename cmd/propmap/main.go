package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/propmap/internal/config"
	"github.com/joeblew999/propmap/internal/logging"
	"github.com/joeblew999/propmap/internal/server"
	"github.com/joeblew999/propmap/internal/store"
)

// Options defines all CLI flags and env vars for the property map server.
// Flags: --host, --port, --source, --data-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_SOURCE, SERVICE_DATA_DIR, ...
type Options struct {
	Host   string `doc:"Host to bind to" default:"0.0.0.0"`
	Port   int    `doc:"Port to listen on" short:"p" default:"8087"`
	WebDir string `doc:"Path to web/ directory (static assets, fragment overrides)" default:""`

	Source          string `doc:"Property source: duckdb, postgres or rest" default:"duckdb"`
	DataDir         string `doc:"Directory for the DuckDB file; empty keeps it in memory" default:".data"`
	DatabaseURL     string `doc:"Postgres connection string" default:""`
	PropertiesTable string `doc:"Postgres table holding properties" default:"properties"`
	RestURL         string `doc:"Base URL of the property REST API" default:""`
	RestAPIKey      string `doc:"API key sent to the property REST API" default:""`

	Settings        string `doc:"Path to a YAML map settings file" default:""`
	FetchTimeout    int    `doc:"Timeout for one property load, in seconds" default:"10"`
	RefreshInterval int    `doc:"Auto-refresh interval for open map views, in seconds; 0 disables" default:"0"`
	RetainOnError   bool   `doc:"Keep the last good properties when a reload fails" default:"false"`

	NominatimURL   string `doc:"Nominatim base URL" default:"https://nominatim.openstreetmap.org"`
	NominatimEmail string `doc:"Contact email sent to Nominatim" default:""`
	RedisAddr      string `doc:"Redis address for the geocode cache; empty disables" default:""`
	RedisPassword  string `doc:"Redis password" default:""`
	RedisDB        int    `doc:"Redis database" default:"0"`
	AmqpURL        string `doc:"AMQP URL for property change notifications; empty disables" default:""`

	CorsOrigins string `doc:"Comma-separated allowed CORS origins; empty disables CORS" default:""`
	RateLimit   int    `doc:"Requests per minute per client IP; 0 disables" default:"0"`

	LogLevel   string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat  string `doc:"Log format: tint, text, json" default:"tint"`
	FluentHost string `doc:"Fluent Bit host; empty disables" default:""`
	FluentPort int    `doc:"Fluent Bit port" default:"24224"`
	FluentTag  string `doc:"Fluent tag prefix" default:"propmap"`
}

func newLogger(opts *Options) (*slog.Logger, func() error) {
	logger, closeFn, err := logging.New(logging.Config{
		Level:      opts.LogLevel,
		Format:     opts.LogFormat,
		FluentHost: opts.FluentHost,
		FluentPort: opts.FluentPort,
		FluentTag:  opts.FluentTag,
	})
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	slog.SetDefault(logger)
	return logger, closeFn
}

func newServer(ctx context.Context, opts *Options, logger *slog.Logger) *server.Server {
	settings, err := config.Load(opts.Settings)
	if err != nil {
		log.Fatalf("Settings error: %v", err)
	}
	var origins []string
	for _, o := range strings.Split(opts.CorsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	srv, err := server.New(ctx, server.Config{
		Host:            opts.Host,
		Port:            fmt.Sprintf("%d", opts.Port),
		WebDir:          opts.WebDir,
		Source:          opts.Source,
		DataDir:         opts.DataDir,
		DatabaseURL:     opts.DatabaseURL,
		PropertiesTable: opts.PropertiesTable,
		RESTURL:         opts.RestURL,
		RESTAPIKey:      opts.RestAPIKey,
		FetchTimeout:    time.Duration(opts.FetchTimeout) * time.Second,
		RefreshInterval: time.Duration(opts.RefreshInterval) * time.Second,
		RetainOnError:   opts.RetainOnError,
		NominatimURL:    opts.NominatimURL,
		NominatimEmail:  opts.NominatimEmail,
		RedisAddr:       opts.RedisAddr,
		RedisPassword:   opts.RedisPassword,
		RedisDB:         opts.RedisDB,
		AMQPURL:         opts.AmqpURL,
		CORSOrigins:     origins,
		RateLimit:       opts.RateLimit,
		Settings:        settings,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
	return srv
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, closeLog := newLogger(opts)
			defer closeLog()
			srv := newServer(ctx, opts, logger)
			defer srv.Close()
			srv.Start(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("propmap API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Source:  %s\n", opts.Source)
			fmt.Println()
			fmt.Printf("  Map:     %s/api/v1/map/view\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer := &http.Server{Addr: addr, Handler: srv}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
			}
		})
	})

	cli.Root().Use = "propmap"
	cli.Root().Short = "Interactive property map server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			// The OpenAPI document does not depend on data; keep DuckDB in memory.
			opts.Source, opts.DataDir = server.SourceDuckDB, ""
			opts.AmqpURL, opts.RedisAddr = "", ""
			logger, closeLog := newLogger(&Options{LogLevel: "error", LogFormat: "text"})
			defer closeLog()
			srv := newServer(cmd.Context(), opts, logger)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// seed subcommand: load a GeoJSON file into the DuckDB source
	seedCmd := &cobra.Command{
		Use:   "seed FILE.geojson",
		Short: "Load point features from a GeoJSON file into the DuckDB database",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			n, err := store.SeedDuckDB(cmd.Context(), opts.DataDir, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error seeding: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Seeded %d properties into %s\n", n, opts.DataDir)
		}),
	}
	cli.Root().AddCommand(seedCmd)

	// check subcommand: load the map data once and report it
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load map properties once from the configured source and print a summary",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.AmqpURL, opts.RedisAddr = "", ""
			logger, closeLog := newLogger(opts)
			defer closeLog()
			srv := newServer(cmd.Context(), opts, logger)
			defer srv.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(opts.FetchTimeout)*time.Second)
			defer cancel()
			svc := srv.Services().Map
			props, err := svc.GetMapProperties(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Properties: %d\n", len(props))
			if b := svc.CalculateBounds(props); b != nil {
				sw, ne := b.SouthWest(), b.NorthEast()
				fmt.Printf("Bounds:     SW %.5f,%.5f  NE %.5f,%.5f\n", sw.Lat, sw.Lng, ne.Lat, ne.Lng)
			}
		}),
	}
	cli.Root().AddCommand(checkCmd)

	cli.Run()
}
