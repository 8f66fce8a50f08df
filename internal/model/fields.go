package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
)

// Fields is the raw field map of a stored document. Field names have been
// written as both snake_case and camelCase over the life of the schema, so
// every lookup takes the camelCase name and falls back to its snake_case
// spelling.
type Fields map[string]any

// Lookup returns the raw value stored under the camelCase name or its
// snake_case spelling. Explicit nulls count as absent.
func (f Fields) Lookup(name string) (any, bool) {
	if v, ok := f[name]; ok && v != nil {
		return v, true
	}
	if alt := snakeCase(name); alt != name {
		if v, ok := f[alt]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the field as a string, or "" when absent or malformed.
func (f Fields) String(name string) string {
	s, _ := f.OptString(name)
	if s == nil {
		return ""
	}
	return *s
}

// OptString returns the field as a string pointer. The bool is false when
// the field is present but could not be coerced.
func (f Fields) OptString(name string) (*string, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return nil, true
	}
	switch v.(type) {
	case map[string]any, []any, []string:
		return nil, false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, false
	}
	return &s, true
}

// OptTime returns the field as a time. Strings are parsed with cast's
// layout list (RFC3339 first); numbers are Unix seconds.
func (f Fields) OptTime(name string) (*time.Time, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return nil, true
	}
	if sec, isFloat := v.(float64); isFloat {
		t := time.Unix(int64(sec), 0).UTC()
		return &t, true
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// OptFloat returns the field as a float64.
func (f Fields) OptFloat(name string) (*float64, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return nil, true
	}
	if _, isBool := v.(bool); isBool {
		return nil, false
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// OptInt returns the field as an int64.
func (f Fields) OptInt(name string) (*int64, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return nil, true
	}
	if _, isBool := v.(bool); isBool {
		return nil, false
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		// JSON numbers arrive as float64 with a fractional part of zero.
		fl, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			return nil, false
		}
		n = int64(fl)
	}
	return &n, true
}

// OptBool returns the field as a bool.
func (f Fields) OptBool(name string) (*bool, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return nil, true
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, false
	}
	return &b, true
}

// Strings returns the field as a string slice. Absent or malformed fields
// decode as nil.
func (f Fields) Strings(name string) []string {
	v, ok := f.Lookup(name)
	if !ok {
		return nil
	}
	switch v.(type) {
	case []any, []string:
	default:
		return nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

// Map returns a nested field map, or nil.
func (f Fields) Map(name string) Fields {
	v, ok := f.Lookup(name)
	if !ok {
		return nil
	}
	switch m := v.(type) {
	case map[string]any:
		return Fields(m)
	case Fields:
		return m
	case map[string]string:
		out := make(Fields, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out
	}
	return nil
}

// snakeCase converts a camelCase identifier to snake_case ("projectId" ->
// "project_id", "fcmToken" -> "fcm_token").
func snakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
