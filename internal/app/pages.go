package app

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/sync"
	"github.com/nhle/erp-sync/internal/theme"
	"github.com/nhle/erp-sync/internal/ui/detail"
	"github.com/nhle/erp-sync/internal/ui/rowlist"
)

const dateFormat = "2006-01-02"

func (m *Model) refreshProjects() {
	rows := make([]rowlist.Row, len(m.projects.Items))
	for i, p := range m.projects.Items {
		rows[i] = rowlist.Row{
			ID:     p.ID,
			Title:  p.Name,
			Badges: []string{theme.StatusStyle(p.Status).Render(p.Status)},
			Note:   p.ID,
		}
	}
	m.projectList.SetRows(rows)
	m.projectList.SetError(stateError(m.projects.Err))
}

func (m *Model) refreshTasks() {
	names := m.projectNames()
	rows := make([]rowlist.Row, len(m.tasks.Items))
	for i, t := range m.tasks.Items {
		note := names[t.ProjectID]
		if t.DueDate != nil {
			note += " · due " + t.DueDate.Format(dateFormat)
		}
		rows[i] = rowlist.Row{
			ID:    t.ID,
			Title: t.Title,
			Badges: []string{
				theme.StatusStyle(t.Status).Render(t.Status),
				theme.PriorityStyle(t.Priority).Render(t.Priority),
			},
			Note: note,
		}
	}
	m.taskList.SetRows(rows)
	m.taskList.SetError(stateError(m.tasks.Err))
}

func (m *Model) refreshInbox() {
	rows := make([]rowlist.Row, len(m.inbox))
	for i, n := range m.inbox {
		rows[i] = rowlist.Row{
			ID:     n.ID,
			Title:  n.Title,
			Badges: []string{theme.DimmedStyle.Render("[" + n.Type + "]")},
			Note:   rowlist.RelativeTime(n.CreatedAt),
			Marked: !n.Read,
		}
	}
	m.inboxList.SetRows(rows)
}

func (m *Model) refreshListeners() {
	rows := make([]rowlist.Row, len(m.statuses))
	for i, s := range m.statuses {
		note := fmt.Sprintf("%d subscribers", s.Subscribers)
		if !s.LastSync.IsZero() {
			note += " · synced " + rowlist.RelativeTime(s.LastSync)
		}
		if s.Error != nil {
			note += " · " + s.Error.Error()
		}
		rows[i] = rowlist.Row{
			ID:     s.Key,
			Title:  s.Key,
			Badges: []string{theme.SyncStateStyle(s.State.String()).Render(s.State.String())},
			Note:   note,
		}
	}
	m.listenList.SetRows(rows)
}

func stateError(err *sync.SyncError) string {
	if err == nil {
		return ""
	}
	if err.Kind == sync.PermissionDenied {
		return "access denied: " + err.Collection
	}
	return "showing cached data, " + err.Error()
}

func (m Model) projectNames() map[string]string {
	names := make(map[string]string, len(m.projects.Items))
	for _, p := range m.projects.Items {
		names[p.ID] = p.Name
	}
	return names
}

func (m Model) findProject(id string) (model.Project, bool) {
	for _, p := range m.projects.Items {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

func (m Model) findNotification(id string) (model.Notification, bool) {
	for _, n := range m.inbox {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// selectRow opens whatever the picked row stands for.
func (m *Model) selectRow(msg rowlist.SelectedMsg) tea.Cmd {
	switch msg.List {
	case "projects":
		return m.openProject(msg.ID, model.DefaultSubTab, "", "")

	case "tasks":
		for _, t := range m.tasks.Items {
			if t.ID == msg.ID {
				return m.openProject(t.ProjectID, model.SubTabTasks, t.ID, "")
			}
		}

	case "notifications":
		n, ok := m.findNotification(msg.ID)
		if !ok {
			return nil
		}
		m.closeDetail()
		m.detailID = n.ID
		m.overlay = OverlayDetail
		m.detail.SetPage(notificationPage(n))
		m.core.Router.Select(n)

	case "listeners":
		for _, s := range m.statuses {
			if s.Key == msg.ID {
				m.closeDetail()
				m.overlay = OverlayDetail
				m.detail.SetPage(listenerPage(s))
			}
		}
	}
	return nil
}

// openProject shows a project with its subcollections live.
func (m *Model) openProject(projectID string, tab model.SubTab, taskID, meetingID string) tea.Cmd {
	if m.scope != nil && m.scope.projectID == projectID {
		m.scope.subTab, m.scope.taskID, m.scope.meetingID = tab, taskID, meetingID
		m.overlay = OverlayDetail
		m.refreshDetail()
		return nil
	}

	m.closeDetail()
	m.scope = openScope(m.core.Sink, projectID)
	m.scope.subTab, m.scope.taskID, m.scope.meetingID = tab, taskID, meetingID
	m.overlay = OverlayDetail
	m.refreshDetail()
	return m.scope.watch()
}

func (m *Model) closeDetail() {
	if m.scope != nil {
		m.scope.close()
		m.scope = nil
	}
	m.detailID = ""
	if m.overlay == OverlayDetail {
		m.overlay = OverlayNone
	}
}

// refreshDetail re-renders the open page from the latest views.
func (m *Model) refreshDetail() {
	switch {
	case m.scope != nil:
		m.detail.SetPage(m.projectPage())
	case m.detailID != "":
		if n, ok := m.findNotification(m.detailID); ok {
			m.detail.SetPage(notificationPage(n))
		}
	}
}

// followIntent applies a resolved navigation intent.
func (m *Model) followIntent(intent model.Intent) tea.Cmd {
	next := m.waitForIntent()

	if intent.Section != model.SectionProjects || intent.Project == nil {
		m.closeDetail()
		m.tab = TabNotifications
		m.notice = "notification could not be matched to a project"
		return next
	}

	m.tab = TabProjects
	m.notice = fmt.Sprintf("opened %s at %s", intent.Project.Name, intent.SubTab)
	return tea.Batch(next, m.openProject(intent.Project.ID, intent.SubTab, deref(intent.TaskID), deref(intent.MeetingID)))
}

func (m Model) projectPage() *detail.Page {
	sc := m.scope
	p, ok := m.findProject(sc.projectID)
	if !ok {
		return &detail.Page{
			Title: sc.projectID,
			Body:  theme.DimmedStyle.Render("Project is not visible to the current identity."),
		}
	}

	page := &detail.Page{
		Title:  p.Name,
		Badges: []string{theme.StatusStyle(p.Status).Render(p.Status), theme.DimmedStyle.Render("tab: " + string(sc.subTab))},
		Fields: []detail.Field{
			{Label: "ID", Value: p.ID},
			{Label: "Owner", Value: p.Owner},
			{Label: "Type", Value: p.Type},
			{Label: "Category", Value: p.Category},
			{Label: "Deadline", Value: formatTime(p.Deadline)},
			{Label: "Tenant", Value: deref(p.TenantID)},
			{Label: "Team", Value: strings.Join(append(append([]string{}, p.TeamMembers...), p.Team...), ", ")},
		},
		Body: p.Description,
	}

	var tasks []string
	for _, t := range m.tasks.Items {
		if t.ProjectID != p.ID {
			continue
		}
		line := fmt.Sprintf("%s %s", theme.StatusStyle(t.Status).Render(t.Status), t.Title)
		if t.ID == sc.taskID {
			line = theme.SelectedItemStyle.Render(line)
		}
		tasks = append(tasks, line)
	}

	var meetings []string
	for _, mt := range sc.meetings.Items {
		line := fmt.Sprintf("%s  %s  %s", mt.Date.Format(dateFormat), mt.Title, theme.DimmedStyle.Render(mt.Status))
		if mt.ID == sc.meetingID {
			line = theme.SelectedItemStyle.Render(line)
		}
		meetings = append(meetings, line)
	}

	var docs []string
	for _, d := range sc.documents.Items {
		docs = append(docs, fmt.Sprintf("%s  %s", d.Name, theme.DimmedStyle.Render(d.Type)))
	}

	var financials []string
	for _, f := range sc.financials.Items {
		financials = append(financials, fmt.Sprintf("%-8s %10.2f  %s", f.Type, f.Amount, f.Description))
	}

	sections := []detail.Section{
		section("Tasks", m.tasks.Loaded, m.tasks.Err, tasks),
		section("Meetings", sc.meetings.Loaded, sc.meetings.Err, meetings),
		section("Documents", sc.documents.Loaded, sc.documents.Err, docs),
		section("Financials", sc.financials.Loaded, sc.financials.Err, financials),
	}
	tabs := []model.SubTab{model.SubTabTasks, model.SubTabMeetings, model.SubTabDocuments, model.SubTabFinancials}
	// The intent's sub-tab goes first.
	for i, tab := range tabs {
		if tab == sc.subTab {
			active := sections[i]
			active.Title = "▸ " + active.Title
			sections = append([]detail.Section{active}, append(sections[:i:i], sections[i+1:]...)...)
			break
		}
	}
	page.Sections = sections
	return page
}

func section(title string, loaded bool, err *sync.SyncError, lines []string) detail.Section {
	title = fmt.Sprintf("%s (%d)", title, len(lines))
	switch {
	case err != nil && err.Kind == sync.PermissionDenied:
		lines = []string{theme.ErrorStyle.Render("access denied")}
	case !loaded:
		lines = []string{theme.DimmedStyle.Render("loading…")}
	case len(lines) == 0:
		lines = []string{theme.DimmedStyle.Render("none")}
	}
	return detail.Section{Title: title, Lines: lines}
}

func notificationPage(n model.Notification) *detail.Page {
	read := "unread"
	if n.Read {
		read = "read"
	}
	h := n.Hints
	return &detail.Page{
		Title:  n.Title,
		Badges: []string{theme.DimmedStyle.Render("[" + n.Type + "]"), theme.DimmedStyle.Render(read)},
		Fields: []detail.Field{
			{Label: "Received", Value: n.CreatedAt.Format("2006-01-02 15:04")},
			{Label: "Project", Value: deref(h.ProjectID)},
			{Label: "Project name", Value: deref(h.ProjectName)},
			{Label: "Target tab", Value: deref(h.TargetTab)},
			{Label: "Task", Value: deref(h.TaskID)},
			{Label: "Meeting", Value: deref(h.MeetingID)},
			{Label: "Deep link", Value: deref(h.DeepLinkPath)},
		},
		Body: n.Body,
	}
}

func listenerPage(s sync.SyncStatus) *detail.Page {
	page := &detail.Page{
		Title:  s.Key,
		Badges: []string{theme.SyncStateStyle(s.State.String()).Render(s.State.String())},
		Fields: []detail.Field{
			{Label: "Subscribers", Value: fmt.Sprint(s.Subscribers)},
		},
	}
	if !s.LastSync.IsZero() {
		page.Fields = append(page.Fields, detail.Field{Label: "Last sync", Value: s.LastSync.Format("2006-01-02 15:04:05")})
	}
	if s.Error != nil {
		page.Body = theme.ErrorStyle.Render(s.Error.Error())
	}
	return page
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateFormat)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
