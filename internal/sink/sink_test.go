package sink_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/sink"
	"github.com/nhle/erp-sync/internal/sync"
	"github.com/nhle/erp-sync/tests/testutil"
)

var quiet = log.New(io.Discard, "", 0)

var (
	admin  = &model.Identity{UserID: "a1", Role: model.RoleAdmin}
	vendor = &model.Identity{UserID: "v1", Role: model.RoleVendor}
)

type harness struct {
	fake       *testutil.FakeStore
	registry   *sync.Registry
	identities *observable.Value[*model.Identity]
	sink       *sink.Sink
}

func newHarness(t *testing.T, id *model.Identity) *harness {
	t.Helper()

	fake := testutil.NewFakeStore()
	reg := sync.New(fake, sync.Options{GracePeriod: 30 * time.Millisecond, RetryInterval: time.Hour, Logger: quiet})
	ids := observable.NewWith(id)
	s := sink.New(context.Background(), reg, ids, sink.Options{Logger: quiet})

	t.Cleanup(func() {
		s.Close()
		reg.Close()
	})
	return &harness{fake: fake, registry: reg, identities: ids, sink: s}
}

// waitFor blocks until the view publishes a state satisfying pred.
func waitFor[T any](t *testing.T, v *observable.Value[sink.State[T]], pred func(sink.State[T]) bool) sink.State[T] {
	t.Helper()

	sub := v.Subscribe()
	defer sub.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-sub.C():
			require.True(t, ok, "view closed")
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for view state")
		}
	}
}

func loaded[T any](st sink.State[T]) bool { return st.Loaded }

func projectDocs() []docstore.Document {
	return []docstore.Document{
		testutil.Doc("p1", "name", "Villa", "team", []any{"v1"}),
		testutil.Doc("p2", "name", "Office", "team", []any{"v2"}),
	}
}

func TestProjectsStartUnloaded(t *testing.T) {
	h := newHarness(t, admin)

	st, ok := h.sink.Projects().Get()
	require.True(t, ok)
	assert.False(t, st.Loaded)
	assert.NotNil(t, st.Items)
	assert.False(t, h.sink.ProjectsLoaded())
}

func TestProjectsFilteredForIdentity(t *testing.T) {
	h := newHarness(t, vendor)
	h.fake.EmitDocs(sink.ProjectsQuery.Key(), projectDocs()...)

	st := waitFor(t, h.sink.Projects(), loaded[model.Project])
	require.Len(t, st.Items, 1)
	assert.Equal(t, "p1", st.Items[0].ID)
	assert.True(t, h.sink.ProjectsLoaded())
}

func TestIdentityChangeRefiltersWithoutNewListener(t *testing.T) {
	h := newHarness(t, vendor)
	key := sink.ProjectsQuery.Key()
	h.fake.EmitDocs(key, projectDocs()...)
	waitFor(t, h.sink.Projects(), loaded[model.Project])

	h.identities.Set(admin)
	st := waitFor(t, h.sink.Projects(), func(st sink.State[model.Project]) bool { return len(st.Items) == 2 })
	assert.Equal(t, "p1", st.Items[0].ID)
	assert.Equal(t, 1, h.fake.Opens(key))

	h.identities.Set(nil)
	waitFor(t, h.sink.Projects(), func(st sink.State[model.Project]) bool { return len(st.Items) == 0 })
}

func TestTasksFollowProjectMembership(t *testing.T) {
	h := newHarness(t, vendor)
	h.fake.EmitDocs(sink.TasksQuery.Key(),
		testutil.Doc("t1", "projectId", "p1", "title", "Order tiles"),
		testutil.Doc("t2", "projectId", "p2", "title", "Paint"),
	)
	// Without projects the vendor sees nothing.
	waitFor(t, h.sink.Tasks(), func(st sink.State[model.Task]) bool { return st.Loaded && len(st.Items) == 0 })

	h.fake.EmitDocs(sink.ProjectsQuery.Key(), projectDocs()...)
	st := waitFor(t, h.sink.Tasks(), func(st sink.State[model.Task]) bool { return len(st.Items) == 1 })
	assert.Equal(t, "t1", st.Items[0].ID)
}

func TestMalformedRecordIsDroppedAlone(t *testing.T) {
	h := newHarness(t, admin)
	h.fake.EmitDocs(sink.UsersQuery.Key(),
		testutil.Doc("u1", "email", "a@example.com", "role", "admin"),
		testutil.Doc("u2", "role", "vendor"),
		testutil.Doc("u3", "email", "c@example.com", "role", "astronaut"),
		testutil.Doc("u4", "email", "d@example.com", "role", "Client"),
	)

	st := waitFor(t, h.sink.Users(), loaded[model.User])
	var ids []string
	for _, u := range st.Items {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"u1", "u4"}, ids)
}

func TestPermissionDeniedPublishesEmptyWithError(t *testing.T) {
	h := newHarness(t, admin)
	key := sink.ActivityLogsQuery.Key()
	h.fake.EmitDocs(key, testutil.Doc("l1", "action", "created"))
	waitFor(t, h.sink.ActivityLogs(), func(st sink.State[model.ActivityLog]) bool { return len(st.Items) == 1 })

	h.fake.Fail(key, docstore.ErrPermissionDenied)
	st := waitFor(t, h.sink.ActivityLogs(), func(st sink.State[model.ActivityLog]) bool { return st.Err != nil })
	assert.Empty(t, st.Items)
	assert.Equal(t, sync.PermissionDenied, st.Err.Kind)
}

func TestTransientFailureKeepsLastItems(t *testing.T) {
	h := newHarness(t, admin)
	key := sink.ProjectsQuery.Key()
	h.fake.EmitDocs(key, projectDocs()...)
	waitFor(t, h.sink.Projects(), loaded[model.Project])

	h.fake.Fail(key, errors.New("deadline exceeded"))
	st := waitFor(t, h.sink.Projects(), func(st sink.State[model.Project]) bool { return st.Err != nil })
	assert.Len(t, st.Items, 2)
	assert.Equal(t, sync.Transient, st.Err.Kind)
}

func TestProjectScope(t *testing.T) {
	h := newHarness(t, admin)
	h.fake.EmitDocs(sink.ProjectsQuery.Key(), projectDocs()...)
	waitFor(t, h.sink.Projects(), loaded[model.Project])

	scope := h.sink.OpenProject("p1")
	meetingsKey := docstore.Collection("projects/p1/meetings").Key()
	financialsKey := docstore.Collection("projects/p1/financials").Key()

	h.fake.EmitDocs(meetingsKey, testutil.Doc("m1", "title", "Kickoff", "date", "2024-03-01T09:00:00Z"))
	h.fake.EmitDocs(financialsKey, testutil.Doc("f1", "amount", 100.0, "type", "Income"))

	meetings := waitFor(t, scope.Meetings(), loaded[model.Meeting])
	require.Len(t, meetings.Items, 1)
	assert.Equal(t, "p1", meetings.Items[0].ProjectID)

	fin := waitFor(t, scope.Financials(), loaded[model.FinancialRecord])
	require.Len(t, fin.Items, 1)
	assert.Equal(t, model.TransactionIncome, fin.Items[0].Type)

	h.identities.Set(vendor)
	waitFor(t, scope.Financials(), func(st sink.State[model.FinancialRecord]) bool { return len(st.Items) == 0 })

	scope.Close()
	scope.Close()
	require.Eventually(t, func() bool { return h.fake.Active(financialsKey) == 0 }, time.Second, 10*time.Millisecond)
}

func TestLateReaderGetsCurrentState(t *testing.T) {
	h := newHarness(t, admin)
	h.fake.EmitDocs(sink.ProjectsQuery.Key(), projectDocs()...)
	waitFor(t, h.sink.Projects(), loaded[model.Project])

	sub := h.sink.Projects().Subscribe()
	defer sub.Close()
	select {
	case st := <-sub.C():
		assert.Len(t, st.Items, 2)
	default:
		t.Fatal("late reader did not get the cached state")
	}
}

func TestContextCancelShutsDown(t *testing.T) {
	fake := testutil.NewFakeStore()
	reg := sync.New(fake, sync.Options{GracePeriod: 10 * time.Millisecond, Logger: quiet})
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := sink.New(ctx, reg, observable.NewWith(admin), sink.Options{Logger: quiet})
	cancel()

	require.Eventually(t, func() bool { return fake.Active(sink.ProjectsQuery.Key()) == 0 }, time.Second, 10*time.Millisecond)
	s.Close()
}
