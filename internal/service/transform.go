package service

import "strings"

// TransformForMap maps a raw row to a MapPropertyData, applying defaults for
// every missing field. It does not check coordinates; callers filter first.
func TransformForMap(raw RawProperty) MapPropertyData {
	p := MapPropertyData{
		ID:            raw.ID,
		Title:         stringOr(raw.Title, DefaultTitle),
		Currency:      stringOr(raw.Currency, DefaultCurrency),
		PropertyType:  stringOr(raw.PropertyType, DefaultPropertyType),
		OperationType: stringOr(raw.OperationType, DefaultOperationType),
		Status:        stringOr(raw.Status, StatusAvailable),
		Images:        imageList(raw.Images),
	}
	if raw.Price != nil && *raw.Price > 0 {
		p.Price = *raw.Price
	}
	if raw.Latitude != nil {
		p.Latitude = *raw.Latitude
	}
	if raw.Longitude != nil {
		p.Longitude = *raw.Longitude
	}
	return p
}

func stringOr(s *string, def string) string {
	if s == nil {
		return def
	}
	if v := strings.TrimSpace(*s); v != "" {
		return v
	}
	return def
}

// imageList accepts a decoded JSON array or a string slice; anything else is
// an empty list. Non-string and blank entries are dropped.
func imageList(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
