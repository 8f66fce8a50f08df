package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/route"
	"github.com/nhle/erp-sync/internal/sink"
)

type projectsMsg sink.State[model.Project]

type tasksMsg sink.State[model.Task]

type usersMsg sink.State[model.User]

type inboxMsg []model.Notification

type identityMsg struct {
	id *model.Identity
}

type routeStateMsg route.State

type intentMsg model.Intent

// scopeMsg carries one update of an open project's subcollections. Exactly
// one of the pointers is set.
type scopeMsg struct {
	projectID  string
	documents  *sink.State[model.Document]
	meetings   *sink.State[model.Meeting]
	financials *sink.State[model.FinancialRecord]
}

// noticeMsg is shown in the status bar until the next notice.
type noticeMsg string

// watch turns the next value of an observable subscription into a tea.Msg.
// Handlers re-issue it to keep listening; it yields nil once the
// subscription is closed.
func watch[T any](sub *observable.Subscription[T], wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-sub.C()
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

// subscriptions is shared by every copy of the Model.
type subscriptions struct {
	projects   *observable.Subscription[sink.State[model.Project]]
	tasks      *observable.Subscription[sink.State[model.Task]]
	users      *observable.Subscription[sink.State[model.User]]
	inbox      *observable.Subscription[[]model.Notification]
	identity   *observable.Subscription[*model.Identity]
	routeState *observable.Subscription[route.State]
}

func (s *subscriptions) close() {
	s.projects.Close()
	s.tasks.Close()
	s.users.Close()
	s.inbox.Close()
	s.identity.Close()
	s.routeState.Close()
}

func (m Model) watchProjects() tea.Cmd {
	return watch(m.subs.projects, func(v sink.State[model.Project]) tea.Msg { return projectsMsg(v) })
}

func (m Model) watchTasks() tea.Cmd {
	return watch(m.subs.tasks, func(v sink.State[model.Task]) tea.Msg { return tasksMsg(v) })
}

func (m Model) watchUsers() tea.Cmd {
	return watch(m.subs.users, func(v sink.State[model.User]) tea.Msg { return usersMsg(v) })
}

func (m Model) watchInbox() tea.Cmd {
	return watch(m.subs.inbox, func(v []model.Notification) tea.Msg { return inboxMsg(v) })
}

func (m Model) watchIdentity() tea.Cmd {
	return watch(m.subs.identity, func(v *model.Identity) tea.Msg { return identityMsg{id: v} })
}

func (m Model) watchRouteState() tea.Cmd {
	return watch(m.subs.routeState, func(v route.State) tea.Msg { return routeStateMsg(v) })
}

func (m Model) waitForIntent() tea.Cmd {
	intents := m.core.Router.Intents()
	return func() tea.Msg {
		intent, ok := <-intents
		if !ok {
			return nil
		}
		return intentMsg(intent)
	}
}

// projectScope is the open project's subcollection views. It lives behind a
// pointer so Model copies share it.
type projectScope struct {
	projectID string
	scope     *sink.ProjectScope

	documentsSub  *observable.Subscription[sink.State[model.Document]]
	meetingsSub   *observable.Subscription[sink.State[model.Meeting]]
	financialsSub *observable.Subscription[sink.State[model.FinancialRecord]]

	documents  sink.State[model.Document]
	meetings   sink.State[model.Meeting]
	financials sink.State[model.FinancialRecord]

	// subTab and focus come from the intent that opened the project.
	subTab    model.SubTab
	taskID    string
	meetingID string
}

func openScope(s *sink.Sink, projectID string) *projectScope {
	scope := s.OpenProject(projectID)
	return &projectScope{
		projectID:     projectID,
		scope:         scope,
		documentsSub:  scope.Documents().Subscribe(),
		meetingsSub:   scope.Meetings().Subscribe(),
		financialsSub: scope.Financials().Subscribe(),
		subTab:        model.DefaultSubTab,
	}
}

func (p *projectScope) close() {
	p.documentsSub.Close()
	p.meetingsSub.Close()
	p.financialsSub.Close()
	p.scope.Close()
}

func (p *projectScope) watch() tea.Cmd {
	id := p.projectID
	return tea.Batch(
		watch(p.documentsSub, func(v sink.State[model.Document]) tea.Msg {
			return scopeMsg{projectID: id, documents: &v}
		}),
		watch(p.meetingsSub, func(v sink.State[model.Meeting]) tea.Msg {
			return scopeMsg{projectID: id, meetings: &v}
		}),
		watch(p.financialsSub, func(v sink.State[model.FinancialRecord]) tea.Msg {
			return scopeMsg{projectID: id, financials: &v}
		}),
	)
}

// apply stores msg and returns the command that waits for the next value
// of the same view.
func (p *projectScope) apply(msg scopeMsg) tea.Cmd {
	id := p.projectID
	switch {
	case msg.documents != nil:
		p.documents = *msg.documents
		return watch(p.documentsSub, func(v sink.State[model.Document]) tea.Msg {
			return scopeMsg{projectID: id, documents: &v}
		})
	case msg.meetings != nil:
		p.meetings = *msg.meetings
		return watch(p.meetingsSub, func(v sink.State[model.Meeting]) tea.Msg {
			return scopeMsg{projectID: id, meetings: &v}
		})
	case msg.financials != nil:
		p.financials = *msg.financials
		return watch(p.financialsSub, func(v sink.State[model.FinancialRecord]) tea.Msg {
			return scopeMsg{projectID: id, financials: &v}
		})
	}
	return nil
}
