package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup helpers for loosely typed upstream JSON. Keys are tried in order,
// exact match first, then case-insensitively.

func Value(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}
	for objKey, v := range obj {
		if v == nil {
			continue
		}
		for _, key := range keys {
			if strings.EqualFold(objKey, key) {
				return v, true
			}
		}
	}
	return nil, false
}

// StringField returns a trimmed, non-empty string. Numbers are formatted
// without exponent so numeric ids survive.
func StringField(obj map[string]any, keys ...string) (string, bool) {
	v, ok := Value(obj, keys...)
	if !ok {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

// FloatField parses numbers and numeric strings such as "$1,250.50" or
// "12,000 SF". Anything else reports false.
func FloatField(obj map[string]any, keys ...string) (float64, bool) {
	v, ok := Value(obj, keys...)
	if !ok {
		return 0, false
	}
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		return parseNumeric(typed)
	default:
		return 0, false
	}
}

func IntField(obj map[string]any, keys ...string) (int, bool) {
	f, ok := FloatField(obj, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func ObjectField(obj map[string]any, keys ...string) (map[string]any, bool) {
	v, ok := Value(obj, keys...)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func ListField(obj map[string]any, keys ...string) ([]any, bool) {
	v, ok := Value(obj, keys...)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func parseNumeric(s string) (float64, bool) {
	var b strings.Builder
	seenDigit := false
loop:
	for _, c := range strings.TrimSpace(s) {
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			b.WriteRune(c)
		case c == '.' || (c == '-' && b.Len() == 0):
			b.WriteRune(c)
		case c == ',' || c == '$' || c == ' ':
			continue
		default:
			if seenDigit {
				// unit suffix such as "SF" or "/mo"
				break loop
			}
			return 0, false
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
