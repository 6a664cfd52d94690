package pricing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Loose conversion helpers for the backend's weakly typed JSON. Numbers may
// arrive as float64, json.Number, or already formatted strings.

func toString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func toStringPtr(v any) *string {
	s := toString(v)
	if s == "" {
		return nil
	}
	return &s
}

func toFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

// toNumberString renders a numeric-or-string value as a display string, so
// "10" comes out the same whether the backend sent 10 or "10".
func toNumberString(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(t)
		return &s
	case json.Number:
		s := t.String()
		return &s
	}
	return nil
}
