package model

import "time"

// Task status values.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusCompleted  = "completed"
)

// Task priority values.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task is a unit of work within a project.
type Task struct {
	// ID is the document id within the tasks collection.
	ID string `json:"id"`

	// ProjectID references the owning Project. Dangling references are
	// tolerated and resolve to "unknown" at render time.
	ProjectID string `json:"project_id"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Category    string `json:"category,omitempty"`

	// Progress is a 0-100 completion estimate, unset on older tasks.
	Progress *float64 `json:"progress,omitempty"`

	// Assignee is the display name; AssigneeID the user id, which was
	// introduced later and is missing on older tasks.
	Assignee   string  `json:"assignee"`
	AssigneeID *string `json:"assignee_id,omitempty"`

	DueDate   *time.Time `json:"due_date,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`

	Dependencies []string `json:"dependencies,omitempty"`
	Documents    []string `json:"documents,omitempty"`

	TenantID *string `json:"tenant_id,omitempty"`
}

// DecodeTask decodes a task document. ProjectID and Title are required.
func DecodeTask(id string, f Fields) (Task, error) {
	r := newReader(CollectionTasks, id, f)
	t := Task{
		ID:           id,
		ProjectID:    r.requiredString("projectId"),
		Title:        r.requiredString("title"),
		Description:  r.str("description"),
		Status:       r.str("status"),
		Priority:     r.str("priority"),
		Category:     r.str("category"),
		Progress:     r.optFloat("progress"),
		Assignee:     r.str("assignee"),
		AssigneeID:   r.optString("assigneeId"),
		DueDate:      r.optTime("dueDate"),
		StartDate:    r.optTime("startDate"),
		CreatedAt:    r.optTime("createdAt"),
		Dependencies: r.strings("dependencies"),
		Documents:    r.strings("documents"),
		TenantID:     r.optString("tenantId"),
	}
	return t, r.done()
}

// EncodeTask returns the canonical field map for a task.
func EncodeTask(t Task) Fields {
	e := encoder{"id": t.ID}
	e.str("projectId", t.ProjectID)
	e.str("title", t.Title)
	e.str("description", t.Description)
	e.str("status", t.Status)
	e.str("priority", t.Priority)
	e.str("category", t.Category)
	e.optFloat("progress", t.Progress)
	e.str("assignee", t.Assignee)
	e.optStr("assigneeId", t.AssigneeID)
	e.optTimestamp("dueDate", t.DueDate)
	e.optTimestamp("startDate", t.StartDate)
	e.optTimestamp("createdAt", t.CreatedAt)
	e.strings("dependencies", t.Dependencies)
	e.strings("documents", t.Documents)
	e.optStr("tenantId", t.TenantID)
	return Fields(e)
}
