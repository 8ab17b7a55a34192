// Package geocode is the client for the external geocoding service used by
// the location picker. It speaks the Nominatim search/reverse API, throttles
// itself to the service's usage policy and caches answers, including misses.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/picker"
)

// DefaultBaseURL is the public OpenStreetMap instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// notFoundMarker is cached for lookups with no result.
const notFoundMarker = "-"

// Config configures the Nominatim client.
type Config struct {
	BaseURL           string
	UserAgent         string
	Email             string
	CountryCodes      string  // e.g. "ar"
	Language          string  // Accept-Language
	RequestsPerSecond float64 // upstream budget; public Nominatim allows 1
	Timeout           time.Duration
	CacheTTL          time.Duration
	NotFoundTTL       time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = "propmap/1.0"
	}
	if c.Language == "" {
		c.Language = "es"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 6 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 7 * 24 * time.Hour
	}
	if c.NotFoundTTL <= 0 {
		c.NotFoundTTL = time.Hour
	}
}

// Nominatim implements picker.Geocoder.
type Nominatim struct {
	cfg     Config
	http    *retryablehttp.Client
	limiter *rate.Limiter
	cache   Cache
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Nominatim)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(n *Nominatim) { n.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Nominatim) { n.logger = l }
}

// NewNominatim creates a client.
func NewNominatim(cfg Config, opts ...Option) *Nominatim {
	cfg.defaults()

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	n := &Nominatim{
		cfg:     cfg,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	n.logger = n.logger.With("component", "geocoder")
	return n
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type reverseResult struct {
	Error       string            `json:"error"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Geocode resolves a free-text address.
func (n *Nominatim) Geocode(ctx context.Context, query string) (geo.LatLng, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return geo.LatLng{}, picker.ErrNotFound
	}
	key := "search:" + strings.ToLower(query)

	var at geo.LatLng
	if hit, ok := n.cached(ctx, key); ok {
		if hit == notFoundMarker {
			return at, picker.ErrNotFound
		}
		if err := json.Unmarshal([]byte(hit), &at); err == nil {
			return at, nil
		}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	if n.cfg.CountryCodes != "" {
		q.Set("countrycodes", n.cfg.CountryCodes)
	}

	var results []searchResult
	if err := n.get(ctx, "/search", q, &results); err != nil {
		return at, err
	}
	if len(results) == 0 {
		n.store(ctx, key, notFoundMarker, n.cfg.NotFoundTTL)
		return at, picker.ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return at, fmt.Errorf("parse lat %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return at, fmt.Errorf("parse lon %q: %w", results[0].Lon, err)
	}
	at = geo.LatLng{Lat: lat, Lng: lng}

	if b, err := json.Marshal(at); err == nil {
		n.store(ctx, key, string(b), n.cfg.CacheTTL)
	}
	return at, nil
}

// Reverse resolves a coordinate to address parts.
func (n *Nominatim) Reverse(ctx context.Context, p geo.LatLng) (picker.Address, error) {
	key := fmt.Sprintf("reverse:%.6f,%.6f", p.Lat, p.Lng)

	var addr picker.Address
	if hit, ok := n.cached(ctx, key); ok {
		if hit == notFoundMarker {
			return addr, picker.ErrNotFound
		}
		if err := json.Unmarshal([]byte(hit), &addr); err == nil {
			return addr, nil
		}
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', 6, 64))
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")

	var res reverseResult
	if err := n.get(ctx, "/reverse", q, &res); err != nil {
		return addr, err
	}
	if res.Error != "" || len(res.Address) == 0 {
		n.store(ctx, key, notFoundMarker, n.cfg.NotFoundTTL)
		return addr, picker.ErrNotFound
	}

	addr = toAddress(res)
	if b, err := json.Marshal(addr); err == nil {
		n.store(ctx, key, string(b), n.cfg.CacheTTL)
	}
	return addr, nil
}

func toAddress(res reverseResult) picker.Address {
	a := res.Address
	street := strings.TrimSpace(strings.Join([]string{a["road"], a["house_number"]}, " "))
	return picker.Address{
		Address:      street,
		Neighborhood: first(a, "neighbourhood", "suburb", "quarter", "city_district"),
		City:         first(a, "city", "town", "village", "municipality"),
		Province:     first(a, "state", "province"),
		Country:      a["country"],
		Formatted:    res.DisplayName,
	}
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

func (n *Nominatim) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	if n.cfg.Email != "" {
		q.Set("email", n.cfg.Email)
	}
	u := strings.TrimRight(n.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept-Language", n.cfg.Language)

	started := time.Now()
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim %s: %w", path, err)
	}
	defer resp.Body.Close()
	n.logger.Debug("nominatim request", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("nominatim %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode nominatim %s: %w", path, err)
	}
	return nil
}

func (n *Nominatim) cached(ctx context.Context, key string) (string, bool) {
	if n.cache == nil {
		return "", false
	}
	v, err := n.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			n.logger.Warn("geocode cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (n *Nominatim) store(ctx context.Context, key, val string, ttl time.Duration) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Set(ctx, key, val, ttl); err != nil {
		n.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}
}

var _ picker.Geocoder = (*Nominatim)(nil)
