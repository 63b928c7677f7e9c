// Package jsonx holds helpers for loosely structured JSON decoded into any.
// Agent responses and gateway request bodies are duck-typed; these helpers
// apply the same truthiness and stringification rules everywhere.
package jsonx

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Decode parses data into a generic value
func Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Object returns v as a JSON object, or nil
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Array returns v as a JSON array
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// NonEmptyArray returns v as a JSON array holding at least one element
func NonEmptyArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok && len(a) > 0
}

// Number returns v as a finite number
func Number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Truthy reports whether v counts as present: null, false, 0, NaN and ""
// do not.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}

// String renders v as text: strings as-is, numbers in shortest form,
// objects and arrays as compact JSON, null as "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// FirstString returns the first key of m holding a non-empty value,
// stringified.
func FirstString(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s := String(v); s != "" {
			return s, true
		}
	}
	return "", false
}

// Strings returns the string elements of a JSON array
func Strings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Truncate caps s at n runes
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// LooseEqual compares two ids the way loosely typed clients do: 1 == "1"
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.TrimSpace(String(a)) == strings.TrimSpace(String(b))
}
