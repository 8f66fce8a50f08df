package model

import (
	"strings"
	"time"
)

// Notification type tags sent by the backend. The tag is free-form; these
// are the values the client knows how to label.
const (
	NotificationProjectUpdate = "project_update"
	NotificationTaskAssigned  = "task_assigned"
	NotificationTaskCompleted = "task_completed"
	NotificationMessage       = "message_received"
	NotificationSystemAlert   = "system_alert"
	NotificationMeeting       = "meeting"
	NotificationFinanceUpdate = "finance_update"
	NotificationInfo          = "info"
)

// DeepLinkHints are the optional navigation targets carried by a push
// payload.
type DeepLinkHints struct {
	ProjectID    *string `json:"project_id,omitempty"`
	ProjectName  *string `json:"project_name,omitempty"`
	TargetTab    *string `json:"target_tab,omitempty"`
	TaskID       *string `json:"task_id,omitempty"`
	MeetingID    *string `json:"meeting_id,omitempty"`
	DeepLinkPath *string `json:"deep_link_path,omitempty"`
}

// Empty reports whether no hint is set.
func (h DeepLinkHints) Empty() bool {
	return h.ProjectID == nil && h.ProjectName == nil && h.TargetTab == nil &&
		h.TaskID == nil && h.MeetingID == nil && h.DeepLinkPath == nil
}

// Notification is a push or in-app alert shown in the notification list.
// Notifications live only in memory for the lifetime of the process.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Type is the free-form type tag (see Notification* constants).
	Type string `json:"type"`

	// CreatedAt is when the notification reached the client.
	CreatedAt time.Time `json:"created_at"`

	Hints DeepLinkHints `json:"hints"`
}

// Section is a top-level area of the app a navigation intent targets.
type Section string

const (
	SectionProjects      Section = "projects"
	SectionNotifications Section = "notifications"
)

// SubTab is a tab within the project detail screen.
type SubTab string

const (
	SubTabOverview   SubTab = "overview"
	SubTabTasks      SubTab = "tasks"
	SubTabDocuments  SubTab = "documents"
	SubTabFinancials SubTab = "financials"
	SubTabMeetings   SubTab = "meetings"
	SubTabActivity   SubTab = "activity"
	SubTabTeam       SubTab = "team"
)

// DefaultSubTab is used when a target tab is absent or unrecognised.
const DefaultSubTab = SubTabOverview

// subTabAliases maps the spellings seen in payloads onto the closed set.
var subTabAliases = map[string]SubTab{
	"overview":   SubTabOverview,
	"details":    SubTabOverview,
	"summary":    SubTabOverview,
	"tasks":      SubTabTasks,
	"task":       SubTabTasks,
	"kanban":     SubTabTasks,
	"documents":  SubTabDocuments,
	"document":   SubTabDocuments,
	"docs":       SubTabDocuments,
	"files":      SubTabDocuments,
	"financials": SubTabFinancials,
	"financial":  SubTabFinancials,
	"finance":    SubTabFinancials,
	"finances":   SubTabFinancials,
	"meetings":   SubTabMeetings,
	"meeting":    SubTabMeetings,
	"activity":   SubTabActivity,
	"activities": SubTabActivity,
	"logs":       SubTabActivity,
	"team":       SubTabTeam,
	"people":     SubTabTeam,
}

// ParseSubTab maps a target tab string onto a known SubTab. The bool is
// false when the string is not recognised.
func ParseSubTab(s string) (SubTab, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	tab, ok := subTabAliases[key]
	return tab, ok
}

// Intent is the navigation target produced from a selected notification.
// It is transient and consumed once by the screen layer.
type Intent struct {
	Section Section

	// Project is set when Section is SectionProjects.
	Project *Project

	SubTab SubTab

	// TaskID and MeetingID carry finer-grained hints through to the
	// project screen.
	TaskID    *string
	MeetingID *string

	// NotificationID identifies the notification that produced the intent.
	NotificationID string
}

// ProjectID returns the id of the target project, or "".
func (i Intent) ProjectID() string {
	if i.Project == nil {
		return ""
	}
	return i.Project.ID
}

// FallbackIntent is the generic intent used when a notification cannot be
// resolved to a project.
func FallbackIntent(notificationID string) Intent {
	return Intent{Section: SectionNotifications, NotificationID: notificationID}
}
