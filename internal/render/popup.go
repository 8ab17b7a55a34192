package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/joeblew999/propmap/internal/service"
)

// DefaultDetailURL is the property page pattern; %d is the property id.
const DefaultDetailURL = "/propiedades/%d"

const priceOnRequest = "Consultar precio"

// Popup is what a marker shows when activated.
type Popup struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Operation string `json:"operation"`
	DetailURL string `json:"detailUrl"`
	Image     string `json:"image,omitempty"`
	ImageAlt  string `json:"imageAlt,omitempty"`
	// LazyImage marks Image for deferred loading (loading="lazy").
	LazyImage bool `json:"lazyImage"`
}

// PopupBuilder formats popups for one locale.
type PopupBuilder struct {
	detailURL string
	lang      language.Tag
}

// NewPopupBuilder returns a builder for detailURL (a fmt pattern taking the
// id) in lang. Zero values fall back to DefaultDetailURL and Spanish.
func NewPopupBuilder(detailURL string, lang language.Tag) *PopupBuilder {
	if detailURL == "" {
		detailURL = DefaultDetailURL
	}
	if lang == language.Und {
		lang = language.Spanish
	}
	return &PopupBuilder{
		detailURL: detailURL,
		lang:      lang,
	}
}

// Build creates the popup for p.
func (b *PopupBuilder) Build(p service.MapPropertyData) Popup {
	pop := Popup{
		Title:     p.Title,
		Price:     b.FormatPrice(p.Price, p.Currency),
		Operation: b.OperationLabel(p.OperationType),
		DetailURL: b.DetailURL(p.ID),
	}
	if len(p.Images) > 0 {
		pop.Image = p.Images[0]
		pop.ImageAlt = p.Title
		pop.LazyImage = true
	}
	return pop
}

// DetailURL returns the property page link.
func (b *PopupBuilder) DetailURL(id int64) string {
	return fmt.Sprintf(b.detailURL, id)
}

// FormatPrice renders amount in the currency's local symbol with locale
// grouping. Zero means the listing has no public price.
func (b *PopupBuilder) FormatPrice(amount float64, code string) string {
	if amount <= 0 {
		return priceOnRequest
	}
	p := message.NewPrinter(b.lang)
	digits := number.MaxFractionDigits(0)
	unit, err := currency.ParseISO(code)
	if err != nil {
		return p.Sprintf("%s %v", strings.ToUpper(code), number.Decimal(amount, digits))
	}
	return p.Sprintf("%v %v", currency.Symbol(unit), number.Decimal(amount, digits))
}

// OperationLabel names an operation type for display.
func (b *PopupBuilder) OperationLabel(op string) string {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "sale", "venta":
		return "Venta"
	case "rent", "rental", "alquiler":
		return "Alquiler"
	case "temporary", "temporario", "alquiler_temporario":
		return "Alquiler temporario"
	case "":
		return ""
	}
	return cases.Title(b.lang).String(strings.ReplaceAll(op, "_", " "))
}
