package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/erp-sync/internal/core"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/sink"
	"github.com/nhle/erp-sync/internal/ui/command"
	"github.com/nhle/erp-sync/internal/ui/rowlist"
	"github.com/nhle/erp-sync/tests/testutil"
)

func strPtr(s string) *string { return &s }

func TestParsePush(t *testing.T) {
	cases := []struct {
		name    string
		args    string
		want    func(t *testing.T, got model.DeepLinkHints)
		title   string
		body    string
		typ     string
		wantErr bool
	}{
		{name: "title only", args: "Hello", title: "Hello", typ: model.NotificationInfo},
		{name: "title and body", args: "Hello | World", title: "Hello", body: "World", typ: model.NotificationInfo},
		{
			name:  "hints",
			args:  "Kickoff | 9am | projectId=p1 meetingId=m1 type=meeting",
			title: "Kickoff", body: "9am", typ: model.NotificationMeeting,
			want: func(t *testing.T, h model.DeepLinkHints) {
				assert.Equal(t, strPtr("p1"), h.ProjectID)
				assert.Equal(t, strPtr("m1"), h.MeetingID)
				assert.Nil(t, h.TaskID)
			},
		},
		{name: "empty", args: "  ", wantErr: true},
		{name: "unknown hint", args: "x | y | color=red", wantErr: true},
		{name: "hint without value", args: "x | y | projectId=", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePush(tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.title, got.Title)
			assert.Equal(t, tc.body, got.Body)
			assert.Equal(t, tc.typ, got.Type)
			if tc.want != nil {
				tc.want(t, got.Hints)
			}
		})
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("Vendor v1 t1, t2")
	require.NoError(t, err)
	assert.Equal(t, &model.Identity{UserID: "v1", Role: model.RoleVendor, TenantIDs: []string{"t1"}}, id)

	id, err = ParseIdentity("admin a1 t1,t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, id.TenantIDs)

	_, err = ParseIdentity("admin")
	assert.Error(t, err)

	_, err = ParseIdentity("root r1")
	assert.Error(t, err)
}

func newTestModel(t *testing.T) (Model, *core.Core) {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	c, err := core.New(context.Background(), core.Options{
		Config: cfg,
		Logger: log.New(io.Discard, "", 0),
		Store:  testutil.NewSeededStore(t),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	m := New(c)
	t.Cleanup(m.subs.close)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), c
}

func TestConsoleRendersProjects(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.View(), "signed out")

	next, _ := m.Update(projectsMsg(sink.State[model.Project]{
		Items:  []model.Project{{ID: "p1", Name: "Villa", Status: model.ProjectStatusExecution}},
		Loaded: true,
	}))
	m = next.(Model)
	assert.Contains(t, m.View(), "Villa")

	next, _ = m.Update(identityMsg{id: &model.Identity{UserID: "a1", Role: model.RoleAdmin}})
	m = next.(Model)
	assert.Contains(t, m.View(), "a1 (Admin)")
}

func TestConsoleCommands(t *testing.T) {
	m, c := newTestModel(t)

	next, _ := m.Update(command.CommandMsg{Name: "as", Args: "designer d1"})
	m = next.(Model)
	require.NotNil(t, c.Identities.Current())
	assert.Equal(t, "d1", c.Identities.Current().UserID)

	next, _ = m.Update(command.CommandMsg{Name: "push", Args: "Site visit | Tomorrow | projectId=p1"})
	m = next.(Model)
	assert.Equal(t, TabNotifications, m.tab)
	require.Len(t, c.Inbox.List(), 1)
	assert.Equal(t, "p1", *c.Inbox.List()[0].Hints.ProjectID)

	next, _ = m.Update(command.CommandMsg{Name: "readall"})
	m = next.(Model)
	assert.Zero(t, c.Inbox.Unread())

	next, _ = m.Update(command.CommandMsg{Name: "bogus"})
	m = next.(Model)
	assert.Contains(t, m.notice, "unknown command")

	next, _ = m.Update(command.CommandMsg{Name: "signout"})
	m = next.(Model)
	assert.Nil(t, c.Identities.Current())
	assert.Equal(t, "signed out", m.notice)
}

func TestConsoleFollowsIntent(t *testing.T) {
	m, _ := newTestModel(t)

	next, _ := m.Update(projectsMsg(sink.State[model.Project]{
		Items:  []model.Project{{ID: "p1", Name: "Villa"}},
		Loaded: true,
	}))
	m = next.(Model)

	p := model.Project{ID: "p1", Name: "Villa"}
	next, _ = m.Update(intentMsg(model.Intent{Section: model.SectionProjects, Project: &p, SubTab: model.SubTabMeetings}))
	m = next.(Model)
	require.NotNil(t, m.scope)
	assert.Equal(t, "p1", m.scope.projectID)
	assert.Equal(t, OverlayDetail, m.overlay)
	assert.Contains(t, m.View(), "▸ Meetings")

	next, _ = m.Update(intentMsg(model.FallbackIntent("n1")))
	m = next.(Model)
	assert.Nil(t, m.scope, "fallback closes the open project")
	assert.Equal(t, TabNotifications, m.tab)
}

func TestConsoleSelectsTaskRow(t *testing.T) {
	m, _ := newTestModel(t)

	next, _ := m.Update(tasksMsg(sink.State[model.Task]{
		Items:  []model.Task{{ID: "t1", ProjectID: "p1", Title: "Order tiles"}},
		Loaded: true,
	}))
	m = next.(Model)

	next, _ = m.Update(rowlist.SelectedMsg{List: "tasks", ID: "t1"})
	m = next.(Model)
	require.NotNil(t, m.scope)
	assert.Equal(t, model.SubTabTasks, m.scope.subTab)
	assert.Equal(t, "t1", m.scope.taskID)
}
