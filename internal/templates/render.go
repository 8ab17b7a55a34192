// Package templates renders the HTML fragments pushed to map views over SSE.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sync"
)

//go:embed fragments/*.html
var fragmentsFS embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"coord": func(v float64) string {
		return fmt.Sprintf("%.6f", v)
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New creates a renderer from the embedded fragments.
func New() (*Renderer, error) {
	return NewFS(fragmentsFS, "fragments/*.html")
}

// NewFS parses the templates matching pattern in fsys.
func NewFS(fsys fs.FS, pattern string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Reload re-parses *.html from a directory on disk (dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(os.DirFS(fragmentsDir), "*.html")
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
