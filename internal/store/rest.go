package store

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joeblew999/propmap/internal/service"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBody = 8 << 20

// RESTConfig configures the REST source.
type RESTConfig struct {
	BaseURL  string // e.g. https://api.example.com/v1
	APIKey   string // sent as Authorization: Bearer when set
	Timeout  time.Duration
	RetryMax int
}

// REST reads properties from an HTTP endpoint that answers with the envelope
// {"success": bool, "data": ..., "error": string}:
//
//	GET {base}/properties?status=available&fields=...
//	GET {base}/properties/{id}
type REST struct {
	base   string
	key    string
	http   *retryablehttp.Client
	schema *jsonschema.Schema
}

// NewREST builds a REST source.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest source base URL is required")
	}
	schema, err := compileSchema("schemas/properties.json")
	if err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	rc.HTTPClient.Timeout = 6 * time.Second
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = nil

	return &REST{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		key:    cfg.APIKey,
		http:   rc,
		schema: schema,
	}, nil
}

func compileSchema(path string) (*jsonschema.Schema, error) {
	f, err := schemaFS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, f); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", path, err)
	}
	schema, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return schema, nil
}

// FetchAvailable asks the endpoint for available rows with map fields only.
// Rows the endpoint returns without coordinates or with another status are
// filtered here too.
func (r *REST) FetchAvailable(ctx context.Context) ([]service.RawProperty, error) {
	q := url.Values{}
	q.Set("status", service.StatusAvailable)
	q.Set("fields", strings.ReplaceAll(mapColumns, " ", ""))

	body, status, err := r.get(ctx, r.base+"/properties?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("properties endpoint returned %d", status)
	}

	data, err := r.decode(body)
	if err != nil {
		return nil, err
	}
	var rows []service.RawProperty
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("%w: data is not a list: %v", service.ErrInvalidPayload, err)
		}
	}

	out := make([]service.RawProperty, 0, len(rows))
	for _, row := range rows {
		if row.Latitude == nil || row.Longitude == nil {
			continue
		}
		if row.Status != nil && *row.Status != service.StatusAvailable {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// FetchByID returns nil, nil on 404.
func (r *REST) FetchByID(ctx context.Context, id int64) (*service.RawProperty, error) {
	body, status, err := r.get(ctx, r.base+"/properties/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("property endpoint returned %d", status)
	}

	data, err := r.decode(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var row service.RawProperty
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("%w: data is not an object: %v", service.ErrInvalidPayload, err)
	}
	return &row, nil
}

func (r *REST) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.key != "" {
		req.Header.Set("Authorization", "Bearer "+r.key)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// decode checks the envelope and returns its data member.
func (r *REST) decode(body []byte) (json.RawMessage, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrMalformedPayload, err)
	}
	if err := r.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidPayload, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrMalformedPayload, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request unsuccessful"
		}
		return nil, fmt.Errorf("%w: %s", service.ErrMalformedPayload, msg)
	}
	return env.Data, nil
}
