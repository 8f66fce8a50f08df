// Package docstore defines the boundary to the remote document store: the
// query shape a listener is opened with, the snapshots it delivers and the
// fire-and-forget write path.
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/erp-sync/internal/model"
)

// Op is a filter operator supported by the remote store.
type Op string

const (
	OpEqual            Op = "=="
	OpIn               Op = "in"
	OpArrayContains    Op = "array-contains"
	OpArrayContainsAny Op = "array-contains-any"
)

// Filter is a single equality or membership constraint.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// In is shorthand for a membership filter.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// ArrayContains is shorthand for an array-contains filter.
func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Sort orders a query by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Query identifies one logical live query. Collection is a slash-separated
// collection path ("tasks", "projects/p1/documents").
type Query struct {
	Collection string
	Filters    []Filter
	Sort       *Sort
}

// Collection starts a query over a collection path.
func Collection(path string) Query {
	return Query{Collection: path}
}

// Where returns a copy of q with an extra filter appended.
func (q Query) Where(f Filter) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), f)
	return out
}

// OrderBy returns a copy of q sorted by field.
func (q Query) OrderBy(field string, desc bool) Query {
	out := q
	out.Sort = &Sort{Field: field, Desc: desc}
	return out
}

// Key returns the canonical subscription key. Filters keep their call order
// because the remote store treats differently ordered filters as distinct
// queries.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|%s %s %s", f.Field, f.Op, formatValue(f.Value))
	}
	if q.Sort != nil {
		dir := "asc"
		if q.Sort.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order %s %s", q.Sort.Field, dir)
	}
	return b.String()
}

func (q Query) String() string {
	return q.Key()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return "[" + strings.Join(val, ",") + "]"
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case string:
		return fmt.Sprintf("%q", val)
	}
	return fmt.Sprint(v)
}

// Document is one stored document.
type Document struct {
	ID     string
	Fields model.Fields
}

// Snapshot is a complete point-in-time copy of the documents matching a
// query. It replaces any earlier snapshot for the same query.
type Snapshot struct {
	Documents []Document
	ReadAt    time.Time
}

// Split returns the ids and field maps of the snapshot's documents in
// order, ready for model.DecodeAll.
func (s Snapshot) Split() ([]string, []model.Fields) {
	ids := make([]string, len(s.Documents))
	fields := make([]model.Fields, len(s.Documents))
	for i, d := range s.Documents {
		ids[i] = d.ID
		fields[i] = d.Fields
	}
	return ids, fields
}

// Listener is an open remote listener.
type Listener interface {
	// Stop detaches the listener. It is safe to call more than once.
	Stop()
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func()

// Stop calls f.
func (f ListenerFunc) Stop() { f() }

// SnapshotHandler receives listener events. Snapshots arrive in the order
// the backend produced them. A non-nil error ends the listener; no further
// calls follow it.
type SnapshotHandler func(Snapshot, error)

// Store is the remote document store collaborator.
type Store interface {
	// Listen opens a live listener for q. The handler is called with the
	// initial snapshot and again after every change.
	Listen(ctx context.Context, q Query, h SnapshotHandler) (Listener, error)

	// Set merges fields into the document at path, creating it if needed.
	Set(ctx context.Context, path string, fields model.Fields) error

	// Delete removes the document at path.
	Delete(ctx context.Context, path string) error
}

// SplitPath splits a document path into its collection path and id.
func SplitPath(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	collection, id = path[:i], path[i+1:]
	if strings.Count(collection, "/")%2 != 0 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return collection, id, nil
}
