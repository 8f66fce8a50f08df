package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewSeededStore creates a test store loaded with Fixtures().
func NewSeededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s := NewTestStore(t)
	if err := s.Seed(context.Background(), Fixtures()); err != nil {
		t.Fatalf("seeding test store: %v", err)
	}
	return s
}

// Fixtures returns a small tenant with two projects:
//
//   - p1 "Villa": vendor v1 on the team, client c1, a financial record and a
//     meeting.
//   - p2 "Office": vendor v2 on the team, v1 hidden.
func Fixtures() store.Fixtures {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)

	return store.Fixtures{
		model.CollectionProjects: {
			"p1": {
				"name":       "Villa",
				"status":     model.ProjectStatusExecution,
				"team":       []any{"v1"},
				"clientId":   "c1",
				"tenant_id":  "t1",
				"created_at": created,
			},
			"p2": {
				"name":          "Office",
				"status":        model.ProjectStatusPlanning,
				"teamMembers":   []any{"v2"},
				"hiddenVendors": []any{"v1"},
				"tenantId":      "t1",
			},
		},
		model.CollectionTasks: {
			"t1": {"projectId": "p1", "title": "Order tiles", "assigneeId": "v1"},
			"t2": {"project_id": "p2", "title": "Paint walls", "assignee_id": "v2"},
			"t3": {"projectId": "p2", "title": "Fix sink", "assigneeId": "v1"},
		},
		model.CollectionUsers: {
			"a1": {"email": "admin@example.com", "role": "Admin", "name": "Ann"},
			"d1": {"email": "designer@example.com", "role": "designer", "name": "Dee"},
			"v1": {"email": "vendor1@example.com", "role": "vendor", "name": "Vic"},
			"v2": {"email": "vendor2@example.com", "role": "vendor", "name": "Val"},
			"c1": {"email": "client@example.com", "role": "client", "name": "Cid"},
		},
		model.CollectionActivityLogs: {
			"l1": {"action": "project_created", "projectId": "p1", "userId": "a1"},
		},
		model.ProjectSubcollection("p1", model.SubcollectionFinancials): {
			"f1": {"amount": 1200.5, "type": "income", "description": "Deposit"},
		},
		model.ProjectSubcollection("p1", model.SubcollectionMeetings): {
			"m1": {"title": "Kickoff", "date": created},
		},
		model.ProjectSubcollection("p1", model.SubcollectionDocuments): {
			"d1": {"name": "plan.pdf", "uploadedBy": "d1", "approvalStatus": "pending"},
			"d2": {"name": "quote.pdf", "uploadedBy": "a1", "approvalStatus": "approved", "sharedWith": []any{"v1"}},
		},
	}
}
