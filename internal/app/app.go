// Package app is the inspection console: it renders the synchronized
// views for the signed-in identity, the notification inbox and the state of
// every live listener.
package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/erp-sync/internal/core"
	"github.com/nhle/erp-sync/internal/keys"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/route"
	"github.com/nhle/erp-sync/internal/sink"
	"github.com/nhle/erp-sync/internal/sync"
	"github.com/nhle/erp-sync/internal/ui"
	"github.com/nhle/erp-sync/internal/ui/command"
	"github.com/nhle/erp-sync/internal/ui/detail"
	helpview "github.com/nhle/erp-sync/internal/ui/help"
	"github.com/nhle/erp-sync/internal/ui/rowlist"
	"github.com/nhle/erp-sync/internal/ui/signin"
)

// Tab is one of the console's top-level lists.
type Tab int

const (
	TabProjects Tab = iota
	TabTasks
	TabNotifications
	TabListeners
)

var tabLabels = []string{"1 Projects", "2 Tasks", "3 Notifications", "4 Listeners"}

// Overlay is a view drawn instead of the active tab.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayHelp
	OverlayCommand
	OverlaySignIn
)

// Model is the root Bubble Tea model.
type Model struct {
	core   *core.Core
	keys   *keys.KeyMap
	layout ui.Layout
	subs   *subscriptions
	scope  *projectScope

	tab     Tab
	overlay Overlay

	projectList rowlist.Model
	taskList    rowlist.Model
	inboxList   rowlist.Model
	listenList  rowlist.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	signinView  signin.Model

	projects   sink.State[model.Project]
	tasks      sink.State[model.Task]
	users      sink.State[model.User]
	inbox      []model.Notification
	statuses   []sync.SyncStatus
	identity   *model.Identity
	routeState route.State

	// detailID is the notification shown in the detail overlay, if any.
	detailID string

	notice string
	ready  bool
}

// New creates the console over a running core.
func New(c *core.Core) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		core: c,
		keys: k,
		subs: &subscriptions{
			projects:   c.Sink.Projects().Subscribe(),
			tasks:      c.Sink.Tasks().Subscribe(),
			users:      c.Sink.Users().Subscribe(),
			inbox:      c.Inbox.Items().Subscribe(),
			identity:   c.Identities.Subscribe(),
			routeState: c.Router.State().Subscribe(),
		},
		projectList: rowlist.New("projects", "Projects", k, 80, 20),
		taskList:    rowlist.New("tasks", "Tasks", k, 80, 20),
		inboxList:   rowlist.New("notifications", "Notifications", k, 80, 20),
		listenList:  rowlist.New("listeners", "Listeners", k, 80, 20),
		detail:      detail.New(k, 80, 20),
		helpView:    helpview.New(k, 80, 20),
		commandView: command.New(80),
		signinView:  signin.New(80),
	}
	m.projectList.SetEmpty("No projects visible.\n\nPress i to pick an identity.")
	m.taskList.SetEmpty("No tasks visible.")
	m.inboxList.SetEmpty("No notifications.\n\nTry :push Site visit | Tomorrow 9am | projectId=p1")
	m.listenList.SetEmpty("No listeners open.")
	return m
}

// Init starts every watch loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.watchProjects(),
		m.watchTasks(),
		m.watchUsers(),
		m.watchInbox(),
		m.watchIdentity(),
		m.watchRouteState(),
		m.waitForIntent(),
		m.core.Registry.WaitForStatus(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.updateActive(msg)

	case projectsMsg:
		m.projects = sink.State[model.Project](msg)
		m.refreshProjects()
		m.refreshDetail()
		return m, m.watchProjects()

	case tasksMsg:
		m.tasks = sink.State[model.Task](msg)
		m.refreshTasks()
		m.refreshDetail()
		return m, m.watchTasks()

	case usersMsg:
		m.users = sink.State[model.User](msg)
		return m, m.watchUsers()

	case inboxMsg:
		m.inbox = msg
		m.refreshInbox()
		m.refreshDetail()
		return m, m.watchInbox()

	case identityMsg:
		m.identity = msg.id
		return m, m.watchIdentity()

	case routeStateMsg:
		m.routeState = route.State(msg)
		return m, m.watchRouteState()

	case sync.SyncStatusMsg:
		m.statuses = msg.Statuses
		m.refreshListeners()
		return m, m.core.Registry.WaitForStatus()

	case scopeMsg:
		if m.scope == nil || m.scope.projectID != msg.projectID {
			return m, nil
		}
		cmd := m.scope.apply(msg)
		m.refreshDetail()
		return m, cmd

	case intentMsg:
		return m, m.followIntent(model.Intent(msg))

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case rowlist.SelectedMsg:
		return m, m.selectRow(msg)

	case detail.BackMsg:
		m.closeDetail()
		return m, nil

	case command.CommandMsg:
		m.overlay = OverlayNone
		return m, m.execute(msg)

	case command.CancelMsg:
		m.overlay = OverlayNone
		return m, nil

	case signin.SignInMsg:
		m.overlay = OverlayNone
		m.core.Identities.SignInAs(msg.Identity)
		m.notice = fmt.Sprintf("signed in as %s (%s)", msg.Identity.UserID, msg.Identity.Role.DisplayName())
		return m, nil

	case signin.CancelMsg:
		m.overlay = OverlayNone
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActive(msg)
}

// handleKey processes global keys. Text-entry overlays get every key.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit, true
	}
	if m.overlay == OverlayCommand || m.overlay == OverlaySignIn {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.overlay == OverlayHelp {
			m.overlay = OverlayNone
		} else {
			m.overlay = OverlayHelp
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.overlay = OverlayCommand
		return m, m.commandView.Focus(), true

	case m.overlay == OverlayHelp && key.Matches(msg, m.keys.Back):
		m.overlay = OverlayNone
		return m, nil, true
	}

	if m.overlay != OverlayNone {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % Tab(len(tabLabels))
	case key.Matches(msg, m.keys.Projects):
		m.tab = TabProjects
	case key.Matches(msg, m.keys.Tasks):
		m.tab = TabTasks
	case key.Matches(msg, m.keys.Notifications):
		m.tab = TabNotifications
	case key.Matches(msg, m.keys.Listeners):
		m.tab = TabListeners
	case key.Matches(msg, m.keys.SignIn):
		m.overlay = OverlaySignIn
		m.signinView.SetUsers(m.users.Items)
		return m, m.signinView.Start(m.identity), true
	case key.Matches(msg, m.keys.SignOut):
		m.core.SignOut()
		m.notice = "signed out"
	case key.Matches(msg, m.keys.MarkAllRead):
		m.core.Inbox.MarkAllRead()
	default:
		return m, nil, false
	}
	return m, nil, true
}

// updateActive dispatches msg to the overlay, or to the active tab's list.
func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.overlay {
	case OverlayDetail:
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	case OverlayCommand:
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd
	case OverlaySignIn:
		m.signinView, cmd = m.signinView.Update(msg)
		return m, cmd
	case OverlayHelp:
		return m, nil
	}

	switch m.tab {
	case TabProjects:
		m.projectList, cmd = m.projectList.Update(msg)
	case TabTasks:
		m.taskList, cmd = m.taskList.Update(msg)
	case TabNotifications:
		m.inboxList, cmd = m.inboxList.Update(msg)
	case TabListeners:
		m.listenList, cmd = m.listenList.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	m.ready = true

	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.projectList.SetSize(w, h)
	m.taskList.SetSize(w, h)
	m.inboxList.SetSize(w, h)
	m.listenList.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w)
	m.signinView.SetSize(w)
}

func (m *Model) shutdown() {
	m.closeDetail()
	m.subs.close()
}

// View renders the frame around the active tab or overlay.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.listenerSummary())
	tabs := m.layout.RenderTabs(tabLabels, int(m.tab))
	status := m.layout.RenderStatusBar(m.hints())
	return m.layout.RenderWithFrame(header, tabs, m.content(), status)
}

func (m Model) content() string {
	switch m.overlay {
	case OverlayDetail:
		return m.detail.View()
	case OverlayHelp:
		return m.helpView.View()
	case OverlayCommand:
		return m.commandView.View()
	case OverlaySignIn:
		return m.signinView.View()
	}

	switch m.tab {
	case TabTasks:
		return m.taskList.View()
	case TabNotifications:
		return m.inboxList.View()
	case TabListeners:
		return m.listenList.View()
	default:
		return m.projectList.View()
	}
}

func (m Model) title() string {
	title := "erpsync · signed out"
	if m.identity != nil {
		title = fmt.Sprintf("erpsync · %s (%s)", m.identity.UserID, m.identity.Role.DisplayName())
	}
	if n := m.core.Inbox.Unread(); n > 0 {
		title += fmt.Sprintf(" [%d new]", n)
	}
	return title
}

// listenerSummary describes the registry at a glance.
func (m Model) listenerSummary() string {
	live, failed := 0, 0
	for _, s := range m.statuses {
		switch s.State {
		case sync.SyncLive:
			live++
		case sync.SyncFailed:
			failed++
		}
	}

	summary := fmt.Sprintf("%d live", live)
	if failed > 0 {
		summary += fmt.Sprintf(" · %d failing", failed)
	}
	if m.routeState == route.Resolving {
		summary = "resolving… · " + summary
	}
	return summary
}

func (m Model) hints() string {
	if m.notice != "" && m.overlay == OverlayNone {
		return m.notice
	}

	switch m.overlay {
	case OverlayHelp:
		return "? close help | esc back"
	case OverlayCommand:
		return "enter run | ↑/↓ history | esc cancel"
	case OverlayDetail:
		return "esc back | j/k scroll"
	case OverlaySignIn:
		return "enter next | esc cancel"
	}
	if m.tab == TabNotifications {
		return "enter open | m mark all read | : command | ? help"
	}
	return "q quit | ? help | : command | tab next | i sign in | o sign out"
}
