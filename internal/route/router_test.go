package route

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/sink"
)

func strPtr(s string) *string { return &s }

var quiet = log.New(io.Discard, "", 0)

func loadedView(projects ...model.Project) *observable.Value[sink.State[model.Project]] {
	return observable.NewWith(sink.State[model.Project]{Items: projects, Loaded: true})
}

func newRouter(t *testing.T, view *observable.Value[sink.State[model.Project]], inbox *notify.Inbox, timeout time.Duration) *Router {
	t.Helper()
	r := New(view, inbox, Options{Timeout: timeout, Logger: quiet})
	t.Cleanup(r.Close)
	return r
}

func notification(id string, hints model.DeepLinkHints) model.Notification {
	return model.Notification{ID: id, Title: "t", Type: model.NotificationInfo, Hints: hints}
}

func TestRouteResolvesVisibleProject(t *testing.T) {
	r := newRouter(t, loadedView(model.Project{ID: "p1", Name: "Villa"}), nil, time.Second)
	n := notification("n1", model.DeepLinkHints{ProjectID: strPtr("p1"), TargetTab: strPtr("financials")})

	intent, err := r.Route(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, model.SectionProjects, intent.Section)
	assert.Equal(t, "p1", intent.ProjectID())
	assert.Equal(t, model.SubTabFinancials, intent.SubTab)
	assert.Equal(t, "n1", intent.NotificationID)
	assert.Equal(t, Resolved, r.LastOutcome())

	st, _ := r.State().Get()
	assert.Equal(t, Idle, st)
}

func TestRouteFallsBackAfterTimeout(t *testing.T) {
	r := newRouter(t, loadedView(model.Project{ID: "p1"}), nil, 50*time.Millisecond)
	n := notification("n2", model.DeepLinkHints{ProjectID: strPtr("p9")})

	start := time.Now()
	intent, err := r.Route(context.Background(), n)

	assert.ErrorIs(t, err, ErrResolutionTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, model.FallbackIntent("n2"), intent)
	assert.Nil(t, intent.Project)
	assert.Equal(t, Unresolvable, r.LastOutcome())
}

func TestRouteWaitsForLoadingView(t *testing.T) {
	view := observable.NewWith(sink.State[model.Project]{Items: []model.Project{}})
	r := newRouter(t, view, nil, 2*time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		view.Set(sink.State[model.Project]{Items: []model.Project{{ID: "p1"}}, Loaded: true})
	}()

	intent, err := r.Route(context.Background(), notification("n3", model.DeepLinkHints{ProjectID: strPtr("p1")}))
	require.NoError(t, err)
	assert.Equal(t, "p1", intent.ProjectID())
	assert.Equal(t, model.DefaultSubTab, intent.SubTab)
}

func TestRouteWithoutProjectIsImmediatelyUnresolvable(t *testing.T) {
	r := newRouter(t, loadedView(model.Project{ID: "p1"}), nil, time.Hour)

	intent, err := r.Route(context.Background(), notification("n4", model.DeepLinkHints{TaskID: strPtr("t1")}))
	assert.ErrorIs(t, err, ErrNoProject)
	assert.Equal(t, model.SectionNotifications, intent.Section)
	assert.Equal(t, Unresolvable, r.LastOutcome())
}

func TestRouteSameNotificationTwice(t *testing.T) {
	r := newRouter(t, loadedView(model.Project{ID: "p1"}), nil, time.Second)
	n := notification("n5", model.DeepLinkHints{ProjectID: strPtr("p1"), TargetTab: strPtr("Docs")})

	first, err := r.Route(context.Background(), n)
	require.NoError(t, err)
	second, err := r.Route(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, model.SubTabDocuments, first.SubTab)
}

func TestRouteCanceled(t *testing.T) {
	r := newRouter(t, loadedView(), nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	intent, err := r.Route(ctx, notification("n6", model.DeepLinkHints{ProjectID: strPtr("p1")}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.SectionNotifications, intent.Section)
}

func TestSubTabFor(t *testing.T) {
	cases := []struct {
		name  string
		hints model.DeepLinkHints
		want  model.SubTab
	}{
		{name: "known tab", hints: model.DeepLinkHints{TargetTab: strPtr("meetings")}, want: model.SubTabMeetings},
		{name: "alias", hints: model.DeepLinkHints{TargetTab: strPtr("Finance")}, want: model.SubTabFinancials},
		{name: "unknown tab, task hint", hints: model.DeepLinkHints{TargetTab: strPtr("gantt"), TaskID: strPtr("t1")}, want: model.SubTabTasks},
		{name: "meeting hint", hints: model.DeepLinkHints{MeetingID: strPtr("m1")}, want: model.SubTabMeetings},
		{name: "tab beats hint", hints: model.DeepLinkHints{TargetTab: strPtr("team"), TaskID: strPtr("t1")}, want: model.SubTabTeam},
		{name: "nothing", hints: model.DeepLinkHints{}, want: model.SubTabOverview},
		{name: "empty tab", hints: model.DeepLinkHints{TargetTab: strPtr("")}, want: model.SubTabOverview},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SubTabFor(tc.hints))
		})
	}
}

func TestSelectMarksReadAndDeliversIntent(t *testing.T) {
	inbox := notify.NewInbox()
	n := notification("n7", model.DeepLinkHints{ProjectID: strPtr("p1"), TaskID: strPtr("t1")})
	inbox.Add(n)

	r := newRouter(t, loadedView(model.Project{ID: "p1"}), inbox, time.Second)
	r.Select(n)

	select {
	case intent := <-r.Intents():
		assert.Equal(t, "p1", intent.ProjectID())
		assert.Equal(t, model.SubTabTasks, intent.SubTab)
		assert.Equal(t, "t1", *intent.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("no intent delivered")
	}
	assert.Equal(t, 0, inbox.Unread())

	select {
	case extra := <-r.Intents():
		t.Fatalf("intent delivered twice: %+v", extra)
	default:
	}
}

func TestStateTransitions(t *testing.T) {
	view := observable.NewWith(sink.State[model.Project]{Items: []model.Project{}})
	r := newRouter(t, view, nil, 2*time.Second)

	sub := r.State().Subscribe()
	defer sub.Close()
	assert.Equal(t, Idle, <-sub.C())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Route(context.Background(), notification("n8", model.DeepLinkHints{ProjectID: strPtr("p1")}))
	}()

	assert.Equal(t, Resolving, <-sub.C())
	view.Set(sink.State[model.Project]{Items: []model.Project{{ID: "p1"}}, Loaded: true})
	<-done
	assert.Equal(t, Resolved, r.LastOutcome())
}
