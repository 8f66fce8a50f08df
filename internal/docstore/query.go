package docstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// Matches reports whether a document satisfies every filter of q. Field
// names resolve through model.Fields so snake_case and camelCase spellings
// both match.
func Matches(q Query, doc Document) bool {
	for _, f := range q.Filters {
		v, ok := doc.Fields.Lookup(f.Field)
		if f.Field == "id" && !ok {
			v, ok = doc.ID, true
		}
		if !ok {
			return false
		}
		if !matchFilter(f, v) {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, v any) bool {
	switch f.Op {
	case OpEqual:
		return equalValues(v, f.Value)
	case OpIn:
		for _, want := range asList(f.Value) {
			if equalValues(v, want) {
				return true
			}
		}
		return false
	case OpArrayContains:
		for _, have := range asList(v) {
			if equalValues(have, f.Value) {
				return true
			}
		}
		return false
	case OpArrayContainsAny:
		for _, have := range asList(v) {
			for _, want := range asList(f.Value) {
				if equalValues(have, want) {
					return true
				}
			}
		}
		return false
	}
	return false
}

// Apply filters and sorts docs the way the remote store would answer q.
// The input slice is not modified.
func Apply(q Query, docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Matches(q, d) {
			out = append(out, d)
		}
	}
	if q.Sort != nil {
		field, desc := q.Sort.Field, q.Sort.Desc
		sort.SliceStable(out, func(i, j int) bool {
			a, aok := out[i].Fields.Lookup(field)
			b, bok := out[j].Fields.Lookup(field)
			// Documents without the sort field are excluded by the remote
			// store; keep them but push them to the end.
			if !aok || !bok {
				return aok && !bok
			}
			c := compareValues(a, b)
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func equalValues(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders numbers numerically, times chronologically (string
// timestamps included) and everything else by its string form.
func compareValues(a, b any) int {
	if isNumber(a) && isNumber(b) {
		fa, fb := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if ta, err := cast.ToTimeE(a); err == nil {
		if tb, err := cast.ToTimeE(b); err == nil {
			return ta.Compare(tb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
