package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/tests/testutil"
)

type event struct {
	snap docstore.Snapshot
	err  error
}

func collect(t *testing.T) (docstore.SnapshotHandler, <-chan event) {
	t.Helper()
	ch := make(chan event, 16)
	return func(s docstore.Snapshot, err error) { ch <- event{s, err} }, ch
}

func next(t *testing.T, ch <-chan event) event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return event{}
	}
}

func ids(s docstore.Snapshot) []string {
	out := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		out[i] = d.ID
	}
	return out
}

func TestSetMergesFields(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", model.Fields{"email": "a@example.com", "role": "vendor"}))
	require.NoError(t, s.Set(ctx, "users/u1", model.Fields{"fcm_token": "tok"}))

	doc, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "a@example.com", doc.Fields.String("email"))
	assert.Equal(t, "tok", doc.Fields.String("fcmToken"))
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := testutil.NewTestStore(t)

	doc, err := s.Get(context.Background(), "users/nobody")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSetRejectsCollectionPath(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.Set(context.Background(), "projects/p1/documents", model.Fields{"name": "x"})
	assert.Error(t, err)
}

func TestListenDeliversInitialSnapshotThenChanges(t *testing.T) {
	s := testutil.NewSeededStore(t)
	ctx := context.Background()

	q := docstore.Collection(model.CollectionTasks).OrderBy("title", false)
	h, ch := collect(t)
	l, err := s.Listen(ctx, q, h)
	require.NoError(t, err)
	defer l.Stop()

	first := next(t, ch)
	require.NoError(t, first.err)
	assert.Equal(t, []string{"t3", "t1", "t2"}, ids(first.snap))

	require.NoError(t, s.Delete(ctx, "tasks/t3"))
	second := next(t, ch)
	require.NoError(t, second.err)
	assert.Equal(t, []string{"t1", "t2"}, ids(second.snap))
}

func TestListenAppliesFilters(t *testing.T) {
	s := testutil.NewSeededStore(t)

	q := docstore.Collection(model.CollectionTasks).Where(docstore.Eq("projectId", "p2"))
	h, ch := collect(t)
	l, err := s.Listen(context.Background(), q, h)
	require.NoError(t, err)
	defer l.Stop()

	ev := next(t, ch)
	require.NoError(t, ev.err)
	assert.ElementsMatch(t, []string{"t2", "t3"}, ids(ev.snap))
}

func TestListenIgnoresOtherCollections(t *testing.T) {
	s := testutil.NewSeededStore(t)
	ctx := context.Background()

	h, ch := collect(t)
	l, err := s.Listen(ctx, docstore.Collection(model.CollectionUsers), h)
	require.NoError(t, err)
	defer l.Stop()
	next(t, ch)

	require.NoError(t, s.Set(ctx, "tasks/t9", model.Fields{"projectId": "p1", "title": "x"}))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected snapshot with %d documents", len(ev.snap.Documents))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFailEndsListener(t *testing.T) {
	s := testutil.NewSeededStore(t)
	ctx := context.Background()

	h, ch := collect(t)
	q := docstore.Collection(model.CollectionProjects)
	_, err := s.Listen(ctx, q, h)
	require.NoError(t, err)
	next(t, ch)

	s.Fail(model.CollectionProjects, docstore.ErrPermissionDenied)
	ev := next(t, ch)
	assert.True(t, docstore.IsPermissionDenied(ev.err))

	require.Eventually(t, func() bool {
		active, err := s.ActiveListeners(ctx, q.Key())
		return err == nil && active == 0
	}, 2*time.Second, 10*time.Millisecond)

	s.ClearFailure(model.CollectionProjects)
	_, err = s.Listen(ctx, q, h)
	require.NoError(t, err)
	assert.NoError(t, next(t, ch).err)
}

func TestListenCountTracksOpens(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	q := docstore.Collection(model.CollectionProjects)

	h, _ := collect(t)
	l1, err := s.Listen(ctx, q, h)
	require.NoError(t, err)
	l2, err := s.Listen(ctx, q, h)
	require.NoError(t, err)
	l1.Stop()
	l1.Stop()

	total, err := s.ListenCount(ctx, q.Key())
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	active, err := s.ActiveListeners(ctx, q.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	l2.Stop()
}

func TestSeedFile(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.json")
	data := `{"projects": {"p1": {"name": "Villa"}}, "projects/p1/meetings": {"m1": {"title": "Kickoff", "date": "2024-03-01T09:00:00Z"}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	require.NoError(t, s.SeedFile(ctx, path))

	snap, err := s.Query(ctx, docstore.Collection("projects/p1/meetings"))
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)

	m, err := model.DecodeMeeting(snap.Documents[0].ID, snap.Documents[0].Fields)
	require.NoError(t, err)
	assert.Equal(t, "Kickoff", m.Title)
}

func TestSeedFileMalformed(t *testing.T) {
	s := testutil.NewTestStore(t)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	err := s.SeedFile(context.Background(), path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
