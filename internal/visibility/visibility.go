// Package visibility decides which records an identity may see. Every
// function is pure: it never mutates its input, keeps the input order and
// returns an empty (non-nil) slice for a nil identity. Applying a filter to
// its own output returns the same output.
package visibility

import (
	"github.com/nhle/erp-sync/internal/model"
)

// Documents returns the documents the identity may see.
//
// Admins see everything and uploaders always see their own files.
// Designers see documents that still need review (pending or rejected).
// Approved documents are visible to anyone named in the share list by user
// id or role.
func Documents(docs []model.Document, id *model.Identity) []model.Document {
	return keep(docs, id, func(d model.Document) bool {
		if !id.InTenant(d.TenantID) {
			return false
		}
		if id.Role == model.RoleAdmin {
			return true
		}
		if d.UploadedBy != "" && d.UploadedBy == id.UserID {
			return true
		}
		switch d.Status() {
		case model.ApprovalPending, model.ApprovalRejected:
			return id.Role == model.RoleDesigner
		case model.ApprovalApproved:
			return d.SharedWithIdentity(id)
		}
		return false
	})
}

// Projects returns the projects the identity may see. Vendors need to be
// on the project's team and not hidden from it; clients need to be one of
// the project's clients.
func Projects(projects []model.Project, id *model.Identity) []model.Project {
	return keep(projects, id, func(p model.Project) bool {
		return projectVisible(p, id)
	})
}

func projectVisible(p model.Project, id *model.Identity) bool {
	if !id.InTenant(p.TenantID) {
		return false
	}
	switch id.Role {
	case model.RoleAdmin, model.RoleDesigner:
		return true
	case model.RoleVendor:
		return p.HasMember(id.UserID) && !p.HidesVendor(id.UserID)
	case model.RoleClient:
		return p.HasClient(id.UserID)
	}
	return false
}

// Tasks returns the tasks the identity may see. Outside of staff, a task
// is visible only when its project is, whoever it is assigned to.
func Tasks(tasks []model.Task, projects []model.Project, id *model.Identity) []model.Task {
	visible := visibleProjectIDs(projects, id)
	return keep(tasks, id, func(t model.Task) bool {
		if !id.InTenant(t.TenantID) {
			return false
		}
		return id.Role.IsStaff() || visible[t.ProjectID]
	})
}

// Meetings returns the meetings whose project the identity may see.
func Meetings(meetings []model.Meeting, projects []model.Project, id *model.Identity) []model.Meeting {
	visible := visibleProjectIDs(projects, id)
	return keep(meetings, id, func(m model.Meeting) bool {
		return visible[m.ProjectID]
	})
}

// Financials returns the records for staff and nothing for anyone else.
func Financials(records []model.FinancialRecord, id *model.Identity) []model.FinancialRecord {
	return keep(records, id, func(r model.FinancialRecord) bool {
		return id.Role.IsStaff() && id.InTenant(r.TenantID)
	})
}

// ActivityLogs follows the same staff-only rule as Financials.
func ActivityLogs(logs []model.ActivityLog, id *model.Identity) []model.ActivityLog {
	return keep(logs, id, func(l model.ActivityLog) bool {
		return id.Role.IsStaff() && id.InTenant(l.TenantID)
	})
}

// Users returns the directory entries the identity may see. Staff see
// everyone; vendors and clients see themselves and the staff.
func Users(users []model.User, id *model.Identity) []model.User {
	return keep(users, id, func(u model.User) bool {
		if !id.InTenant(u.TenantID) {
			return false
		}
		if id.Role.IsStaff() {
			return true
		}
		return u.ID == id.UserID || u.Role.IsStaff()
	})
}

// ProjectVisible reports whether a single project passes Projects.
func ProjectVisible(p model.Project, id *model.Identity) bool {
	return id != nil && projectVisible(p, id)
}

func visibleProjectIDs(projects []model.Project, id *model.Identity) map[string]bool {
	out := make(map[string]bool)
	if id == nil {
		return out
	}
	for _, p := range projects {
		if projectVisible(p, id) {
			out[p.ID] = true
		}
	}
	return out
}

func keep[T any](items []T, id *model.Identity, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	if id == nil {
		return out
	}
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}
