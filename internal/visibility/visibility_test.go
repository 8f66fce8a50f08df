package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/erp-sync/internal/model"
)

func strPtr(s string) *string { return &s }

var (
	admin    = &model.Identity{UserID: "a1", Role: model.RoleAdmin}
	designer = &model.Identity{UserID: "d1", Role: model.RoleDesigner}
	vendor   = &model.Identity{UserID: "v1", Role: model.RoleVendor}
	vendor2  = &model.Identity{UserID: "v2", Role: model.RoleVendor}
	client   = &model.Identity{UserID: "c1", Role: model.RoleClient}
)

var projects = []model.Project{
	{ID: "p1", Name: "Villa", Team: []string{"v1"}, ClientID: strPtr("c1")},
	{ID: "p2", Name: "Office", TeamMembers: []string{"v2", "v1"}, HiddenVendors: []string{"v1"}},
	{ID: "p3", Name: "Loft", VendorIDs: []string{"v2"}, ClientIDs: []string{"c9", "c1"}},
}

func projectIDs(ps []model.Project) []string {
	out := []string{}
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestDocuments(t *testing.T) {
	cases := []struct {
		name     string
		doc      model.Document
		identity *model.Identity
		visible  bool
	}{
		{name: "admin sees rejected", doc: model.Document{ApprovalStatus: strPtr("rejected")}, identity: admin, visible: true},
		{name: "uploader sees own approved unshared", doc: model.Document{UploadedBy: "v1", ApprovalStatus: strPtr("approved")}, identity: vendor, visible: true},
		{name: "designer sees pending", doc: model.Document{ApprovalStatus: strPtr("pending")}, identity: designer, visible: true},
		{name: "designer sees rejected", doc: model.Document{ApprovalStatus: strPtr("rejected")}, identity: designer, visible: true},
		{name: "missing status reads as pending", doc: model.Document{}, identity: designer, visible: true},
		{name: "vendor does not see pending", doc: model.Document{}, identity: vendor, visible: false},
		{name: "approved shared by role", doc: model.Document{ApprovalStatus: strPtr("approved"), SharedWith: []string{"Vendor"}}, identity: vendor, visible: true},
		{name: "approved shared by user id", doc: model.Document{ApprovalStatus: strPtr("approved"), SharedWith: []string{"c1"}}, identity: client, visible: true},
		{name: "approved shared with other role", doc: model.Document{ApprovalStatus: strPtr("approved"), SharedWith: []string{"client"}}, identity: vendor, visible: false},
		{name: "approved unshared hidden from designer", doc: model.Document{ApprovalStatus: strPtr("approved")}, identity: designer, visible: false},
		{name: "approved shared with designer role", doc: model.Document{ApprovalStatus: strPtr("approved"), SharedWith: []string{"designer"}}, identity: designer, visible: true},
		{name: "rejected shared but not designer", doc: model.Document{ApprovalStatus: strPtr("rejected"), SharedWith: []string{"v1"}}, identity: vendor, visible: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Documents([]model.Document{tc.doc}, tc.identity)
			assert.Equal(t, tc.visible, len(got) == 1)
		})
	}
}

func TestProjects(t *testing.T) {
	cases := []struct {
		name     string
		identity *model.Identity
		want     []string
	}{
		{name: "admin", identity: admin, want: []string{"p1", "p2", "p3"}},
		{name: "designer", identity: designer, want: []string{"p1", "p2", "p3"}},
		{name: "vendor on team, hidden from p2", identity: vendor, want: []string{"p1"}},
		{name: "vendor via members and vendor ids", identity: vendor2, want: []string{"p2", "p3"}},
		{name: "client via client id and client ids", identity: client, want: []string{"p1", "p3"}},
		{name: "nil identity", identity: nil, want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, projectIDs(Projects(projects, tc.identity)))
		})
	}
}

func TestTasks(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1"},
		{ID: "t2", ProjectID: "p2", AssigneeID: strPtr("v1")},
		{ID: "t3", ProjectID: "p2"},
		{ID: "t4", ProjectID: "gone"},
	}
	ids := func(ts []model.Task) []string {
		out := []string{}
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, ids(Tasks(tasks, projects, admin)))
	assert.Equal(t, []string{"t1"}, ids(Tasks(tasks, projects, vendor)), "hidden from p2 despite the assignment")
	assert.Equal(t, []string{"t2", "t3"}, ids(Tasks(tasks, projects, vendor2)))
	assert.Equal(t, []string{"t1"}, ids(Tasks(tasks, projects, client)))
	assert.Empty(t, Tasks(tasks, projects, nil))
}

func TestTasksAssignmentDoesNotGrantVendorAccess(t *testing.T) {
	outsider := &model.Identity{UserID: "v7", Role: model.RoleVendor}
	ps := []model.Project{{ID: "px", Team: []string{"v1"}}}
	ts := []model.Task{{ID: "tx", ProjectID: "px", AssigneeID: strPtr("v7")}}

	assert.Empty(t, Projects(ps, outsider))
	assert.Empty(t, Tasks(ts, ps, outsider))
}

func TestFinancialsAndActivityLogsAreStaffOnly(t *testing.T) {
	records := []model.FinancialRecord{{ID: "f1", Amount: 10, Type: model.TransactionIncome}}
	logs := []model.ActivityLog{{ID: "l1", Action: "created"}}

	for _, id := range []*model.Identity{admin, designer} {
		assert.Len(t, Financials(records, id), 1, id.Role)
		assert.Len(t, ActivityLogs(logs, id), 1, id.Role)
	}
	for _, id := range []*model.Identity{vendor, client, nil} {
		got := Financials(records, id)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		gotLogs := ActivityLogs(logs, id)
		assert.NotNil(t, gotLogs)
		assert.Empty(t, gotLogs)
	}
}

func TestMeetingsFollowProjects(t *testing.T) {
	meetings := []model.Meeting{
		{ID: "m1", ProjectID: "p1"},
		{ID: "m2", ProjectID: "p2"},
	}

	assert.Len(t, Meetings(meetings, projects, admin), 2)
	got := Meetings(meetings, projects, vendor)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "m1", got[0].ID)
	}
}

func TestUsers(t *testing.T) {
	users := []model.User{
		{ID: "a1", Role: model.RoleAdmin},
		{ID: "d1", Role: model.RoleDesigner},
		{ID: "v1", Role: model.RoleVendor},
		{ID: "v2", Role: model.RoleVendor},
		{ID: "c1", Role: model.RoleClient},
	}

	assert.Len(t, Users(users, admin), 5)
	got := Users(users, vendor)
	ids := []string{}
	for _, u := range got {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"a1", "d1", "v1"}, ids)
}

func TestTenantScoping(t *testing.T) {
	scoped := &model.Identity{UserID: "a1", Role: model.RoleAdmin, TenantIDs: []string{"t1"}}
	ps := []model.Project{
		{ID: "p1", TenantID: strPtr("t1")},
		{ID: "p2", TenantID: strPtr("t2")},
		{ID: "p3"},
	}

	assert.Equal(t, []string{"p1", "p3"}, projectIDs(Projects(ps, scoped)))
	assert.Equal(t, []string{"p1", "p2", "p3"}, projectIDs(Projects(ps, admin)))
}

func TestFiltersAreIdempotent(t *testing.T) {
	docs := []model.Document{
		{ID: "d1", UploadedBy: "v1"},
		{ID: "d2", ApprovalStatus: strPtr("approved"), SharedWith: []string{"vendor"}},
		{ID: "d3", ApprovalStatus: strPtr("rejected")},
	}
	tasks := []model.Task{{ID: "t1", ProjectID: "p1"}, {ID: "t2", ProjectID: "p3"}}

	for _, id := range []*model.Identity{admin, designer, vendor, vendor2, client, nil} {
		once := Documents(docs, id)
		assert.Equal(t, once, Documents(once, id))

		ps := Projects(projects, id)
		assert.Equal(t, ps, Projects(ps, id))

		ts := Tasks(tasks, projects, id)
		assert.Equal(t, ts, Tasks(ts, projects, id))
	}
}

func TestInputIsNotModified(t *testing.T) {
	ps := append([]model.Project(nil), projects...)
	Projects(ps, vendor)
	assert.Equal(t, projects, ps)
}
