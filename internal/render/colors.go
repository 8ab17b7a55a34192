package render

import "strings"

// Marker colours.
const (
	ColorRed    = "#e74c3c"
	ColorBlue   = "#3498db"
	ColorGreen  = "#27ae60"
	ColorOrange = "#f39c12"
	ColorGrey   = "#7f8c8d"
)

// Palette maps property types to marker colours. Keys are lower case.
type Palette struct {
	Colors  map[string]string `yaml:"colors" json:"colors"`
	Default string            `yaml:"default" json:"default"`
}

// DefaultPalette covers the English and Spanish type names the listings use.
func DefaultPalette() Palette {
	return Palette{
		Colors: map[string]string{
			"house":        ColorRed,
			"casa":         ColorRed,
			"apartment":    ColorBlue,
			"departamento": ColorBlue,
			"land":         ColorGreen,
			"terreno":      ColorGreen,
			"lote":         ColorGreen,
			"commercial":   ColorOrange,
			"local":        ColorOrange,
			"oficina":      ColorOrange,
			"other":        ColorOrange,
			"otro":         ColorOrange,
		},
		Default: ColorGrey,
	}
}

// Color returns the colour for a property type, or the default colour.
func (p Palette) Color(propertyType string) string {
	if c, ok := p.Colors[strings.ToLower(strings.TrimSpace(propertyType))]; ok {
		return c
	}
	if p.Default == "" {
		return ColorGrey
	}
	return p.Default
}

// Merge returns p with the entries of o layered on top.
func (p Palette) Merge(o Palette) Palette {
	out := Palette{Colors: make(map[string]string, len(p.Colors)+len(o.Colors)), Default: p.Default}
	for k, v := range p.Colors {
		out.Colors[k] = v
	}
	for k, v := range o.Colors {
		out.Colors[strings.ToLower(k)] = v
	}
	if o.Default != "" {
		out.Default = o.Default
	}
	return out
}

var defaultPalette = DefaultPalette()

// MarkerColor looks up a property type in the default palette.
func MarkerColor(propertyType string) string {
	return defaultPalette.Color(propertyType)
}
