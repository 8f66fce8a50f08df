package docstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nhle/erp-sync/internal/model"
)

func TestQueryKey(t *testing.T) {
	q := Collection("tasks").
		Where(Eq("projectId", "p1")).
		Where(In("status", "todo", "review")).
		OrderBy("dueDate", true)

	assert.Equal(t, `tasks|projectId == "p1"|status in [todo,review]|order dueDate desc`, q.Key())
}

func TestQueryKeyDistinguishesFilterOrder(t *testing.T) {
	a := Collection("tasks").Where(Eq("a", 1)).Where(Eq("b", 2))
	b := Collection("tasks").Where(Eq("b", 2)).Where(Eq("a", 1))

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Collection("tasks").Where(Eq("a", 1)).Where(Eq("b", 2)).Key())
}

func TestWhereDoesNotAlias(t *testing.T) {
	base := Collection("tasks").Where(Eq("a", 1))
	x := base.Where(Eq("x", 1))
	y := base.Where(Eq("y", 1))

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "x", x.Filters[1].Field)
	assert.Equal(t, "y", y.Filters[1].Field)
}

func TestMatches(t *testing.T) {
	doc := Document{ID: "t1", Fields: model.Fields{
		"project_id": "p1",
		"tags":       []any{"urgent", "site"},
		"progress":   float64(40),
	}}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"equal camel over snake", Eq("projectId", "p1"), true},
		{"equal mismatch", Eq("projectId", "p2"), false},
		{"numeric across types", Eq("progress", 40), true},
		{"in", In("projectId", "p0", "p1"), true},
		{"in miss", In("projectId", "p0"), false},
		{"array contains", ArrayContains("tags", "site"), true},
		{"array contains miss", ArrayContains("tags", "office"), false},
		{"array contains any", Filter{Field: "tags", Op: OpArrayContainsAny, Value: []string{"x", "urgent"}}, true},
		{"missing field", Eq("assigneeId", "v1"), false},
		{"id falls back to document id", Eq("id", "t1"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Collection("tasks").Where(tt.filter)
			assert.Equal(t, tt.want, Matches(q, doc))
		})
	}
}

func TestApplySortsAndKeepsMissingLast(t *testing.T) {
	docs := []Document{
		{ID: "a", Fields: model.Fields{"date": "2024-03-02T00:00:00Z"}},
		{ID: "b", Fields: model.Fields{}},
		{ID: "c", Fields: model.Fields{"date": "2024-03-01T00:00:00Z"}},
		{ID: "d", Fields: model.Fields{"date": "2024-03-03T00:00:00Z"}},
	}

	asc := Apply(Collection("meetings").OrderBy("date", false), docs)
	desc := Apply(Collection("meetings").OrderBy("date", true), docs)

	order := func(ds []Document) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.ID
		}
		return out
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, order(asc))
	assert.Equal(t, []string{"d", "a", "c", "b"}, order(desc))
	assert.Equal(t, "a", docs[0].ID)
}

func TestSplitPath(t *testing.T) {
	coll, id, err := SplitPath("projects/p1/documents/d1")
	require.NoError(t, err)
	assert.Equal(t, "projects/p1/documents", coll)
	assert.Equal(t, "d1", id)

	for _, bad := range []string{"", "projects", "projects/", "projects/p1/documents"} {
		_, _, err := SplitPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestSnapshotSplit(t *testing.T) {
	snap := Snapshot{Documents: []Document{
		{ID: "p1", Fields: model.Fields{"name": "Villa"}},
		{ID: "p2", Fields: model.Fields{"name": "Office"}},
	}}

	ids, fields := snap.Split()
	assert.Equal(t, []string{"p1", "p2"}, ids)
	assert.Equal(t, "Office", fields[1].String("name"))
}

func TestErrorClassification(t *testing.T) {
	denied := status.Error(codes.PermissionDenied, "missing or insufficient permissions")
	unauth := status.Error(codes.Unauthenticated, "token expired")
	unavailable := status.Error(codes.Unavailable, "connection reset")

	assert.True(t, IsPermissionDenied(denied))
	assert.True(t, IsPermissionDenied(unauth))
	assert.True(t, IsPermissionDenied(fmt.Errorf("listen: %w", ErrPermissionDenied)))
	assert.False(t, IsPermissionDenied(unavailable))
	assert.False(t, IsPermissionDenied(nil))

	assert.ErrorIs(t, Classify(denied), ErrPermissionDenied)
	assert.ErrorIs(t, Classify(unavailable), ErrUnavailable)
	assert.ErrorIs(t, Classify(errors.New("boom")), ErrUnavailable)
	assert.NoError(t, Classify(nil))

	assert.True(t, IsCanceled(status.Error(codes.Canceled, "stopped")))
	assert.False(t, IsCanceled(unavailable))
}
