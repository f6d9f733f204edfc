package upstream

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coercion helpers for upstream payloads. Providers disagree on numeric
// encoding: quoted strings, empty strings, missing keys. These never fail;
// bad or absent input yields the caller's default.

// Float coerces v to float64, returning def on failure.
func Float(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return f
		}
	}
	return def
}

// Int coerces v to int64, returning def on failure.
func Int(v any, def int64) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64); err == nil {
			return n
		}
	}
	return def
}

// Dec coerces v to a decimal, returning def on failure. Prices from market
// data providers arrive as quoted strings.
func Dec(v any, def decimal.Decimal) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d
		}
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return def
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return def
}

// Str returns m[key] as a string, or "" when absent or not a string.
func Str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// ReformatDate re-renders a date string from one layout into another.
// Unparseable input is returned unchanged so a bad upstream date surfaces
// verbatim instead of vanishing.
func ReformatDate(s, inLayout, outLayout string) string {
	t, err := time.Parse(inLayout, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.Format(outLayout)
}
