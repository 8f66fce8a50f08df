// Package sink publishes the role-filtered collections the screens render.
// Each view is fed by a registry subscription, decoded, filtered for the
// current identity and cached in an observable value, so late readers see
// the latest state immediately.
package sink

import (
	"context"
	"log"
	gosync "sync"

	"github.com/sourcegraph/conc"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/sync"
	"github.com/nhle/erp-sync/internal/visibility"
)

// Options configures a Sink.
type Options struct {
	Logger *log.Logger
}

// Sink owns the published views.
type Sink struct {
	registry   *sync.Registry
	identities *observable.Value[*model.Identity]
	logger     *log.Logger

	wg      conc.WaitGroup
	idSub   *observable.Subscription[*model.Identity]
	stopCtx func() bool

	mu       gosync.Mutex
	identity *model.Identity
	closed   bool

	projects *binding[model.Project]
	tasks    *binding[model.Task]
	users    *binding[model.User]
	activity *binding[model.ActivityLog]
	scopes   map[*ProjectScope]struct{}
}

// Collection queries behind the top-level views.
var (
	ProjectsQuery     = docstore.Collection(model.CollectionProjects)
	TasksQuery        = docstore.Collection(model.CollectionTasks)
	UsersQuery        = docstore.Collection(model.CollectionUsers)
	ActivityLogsQuery = docstore.Collection(model.CollectionActivityLogs).OrderBy("timestamp", true)
)

// New subscribes the top-level views and starts following identities. The
// sink shuts down when ctx ends or Close is called.
func New(ctx context.Context, registry *sync.Registry, identities *observable.Value[*model.Identity], opts Options) *Sink {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Sink{
		registry:   registry,
		identities: identities,
		logger:     opts.Logger,
		scopes:     make(map[*ProjectScope]struct{}),
	}
	if id, ok := identities.Get(); ok {
		s.identity = id
	}

	s.projects = newBinding("projects", registry.Subscribe(ProjectsQuery), model.DecodeProject, visibility.Projects, s.logger)
	s.tasks = newBinding("tasks", registry.Subscribe(TasksQuery), model.DecodeTask,
		func(ts []model.Task, id *model.Identity) []model.Task {
			return visibility.Tasks(ts, s.projects.raw, id)
		}, s.logger)
	s.users = newBinding("users", registry.Subscribe(UsersQuery), model.DecodeUser, visibility.Users, s.logger)
	s.activity = newBinding("activity_logs", registry.Subscribe(ActivityLogsQuery), model.DecodeActivityLog, visibility.ActivityLogs, s.logger)

	follow(s, s.projects, func() {
		// Task and meeting visibility depends on project membership.
		s.tasks.refresh(s.identity)
		for scope := range s.scopes {
			scope.meetings.refresh(s.identity)
		}
	})
	follow(s, s.tasks, nil)
	follow(s, s.users, nil)
	follow(s, s.activity, nil)

	s.idSub = identities.Subscribe()
	s.wg.Go(func() {
		for id := range s.idSub.C() {
			s.mu.Lock()
			s.identity = id
			for _, b := range s.bindings() {
				b.refresh(id)
			}
			s.mu.Unlock()
		}
	})

	s.stopCtx = context.AfterFunc(ctx, s.shutdown)
	return s
}

// follow pumps b's subscription into b on its own goroutine. then runs
// under the lock after b has been republished.
func follow[T any](s *Sink, b *binding[T], then func()) {
	s.wg.Go(func() {
		for res := range b.sub.C() {
			s.mu.Lock()
			b.ingest(res)
			b.refresh(s.identity)
			if then != nil {
				then()
			}
			s.mu.Unlock()
		}
	})
}

// bindings must be called with the lock held.
func (s *Sink) bindings() []refresher {
	out := []refresher{s.projects, s.tasks, s.users, s.activity}
	for scope := range s.scopes {
		out = append(out, scope.documents, scope.meetings, scope.financials)
	}
	return out
}

// Projects is the role-filtered project view.
func (s *Sink) Projects() *observable.Value[State[model.Project]] { return s.projects.out }

// Tasks is the role-filtered task view.
func (s *Sink) Tasks() *observable.Value[State[model.Task]] { return s.tasks.out }

// Users is the role-filtered user directory.
func (s *Sink) Users() *observable.Value[State[model.User]] { return s.users.out }

// ActivityLogs is the activity feed, empty for non-staff.
func (s *Sink) ActivityLogs() *observable.Value[State[model.ActivityLog]] { return s.activity.out }

// ProjectsLoaded reports whether the project view has received its first
// result.
func (s *Sink) ProjectsLoaded() bool {
	st, _ := s.projects.out.Get()
	return st.Loaded
}

// Identity returns the identity the views are currently filtered for.
func (s *Sink) Identity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ProjectScope holds the per-project views of one open project screen.
type ProjectScope struct {
	ProjectID string

	s          *Sink
	documents  *binding[model.Document]
	meetings   *binding[model.Meeting]
	financials *binding[model.FinancialRecord]
	once       gosync.Once
}

// OpenProject subscribes the documents, meetings and financials of a
// project. Close the scope when the screen goes away.
func (s *Sink) OpenProject(projectID string) *ProjectScope {
	sub := func(name string) *sync.Subscription {
		return s.registry.Subscribe(docstore.Collection(model.ProjectSubcollection(projectID, name)))
	}
	setProject := func(p *string) {
		if *p == "" {
			*p = projectID
		}
	}

	scope := &ProjectScope{ProjectID: projectID, s: s}
	scope.documents = newBinding("documents", sub(model.SubcollectionDocuments), model.DecodeDocument, visibility.Documents, s.logger)
	scope.documents.fixup = func(d *model.Document) { setProject(&d.ProjectID) }
	scope.meetings = newBinding("meetings", sub(model.SubcollectionMeetings), model.DecodeMeeting,
		func(ms []model.Meeting, id *model.Identity) []model.Meeting {
			return visibility.Meetings(ms, s.projects.raw, id)
		}, s.logger)
	scope.meetings.fixup = func(m *model.Meeting) { setProject(&m.ProjectID) }
	scope.financials = newBinding("financials", sub(model.SubcollectionFinancials), model.DecodeFinancialRecord, visibility.Financials, s.logger)
	scope.financials.fixup = func(r *model.FinancialRecord) { setProject(&r.ProjectID) }

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		scope.closeSubs()
		return scope
	}
	s.scopes[scope] = struct{}{}
	s.mu.Unlock()

	follow(s, scope.documents, nil)
	follow(s, scope.meetings, nil)
	follow(s, scope.financials, nil)
	return scope
}

// Documents is the project's role-filtered document view.
func (p *ProjectScope) Documents() *observable.Value[State[model.Document]] { return p.documents.out }

// Meetings is the project's meeting view.
func (p *ProjectScope) Meetings() *observable.Value[State[model.Meeting]] { return p.meetings.out }

// Financials is the project's financial view, empty for non-staff.
func (p *ProjectScope) Financials() *observable.Value[State[model.FinancialRecord]] {
	return p.financials.out
}

// Close releases the scope's subscriptions.
func (p *ProjectScope) Close() {
	p.once.Do(func() {
		p.s.mu.Lock()
		delete(p.s.scopes, p)
		p.s.mu.Unlock()
		p.closeSubs()
	})
}

func (p *ProjectScope) closeSubs() {
	p.documents.sub.Close()
	p.meetings.sub.Close()
	p.financials.sub.Close()
}

// shutdown releases every subscription. The pump goroutines exit once
// their channels close.
func (s *Sink) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	scopes := make([]*ProjectScope, 0, len(s.scopes))
	for scope := range s.scopes {
		scopes = append(scopes, scope)
	}
	s.mu.Unlock()

	s.idSub.Close()
	s.projects.sub.Close()
	s.tasks.sub.Close()
	s.users.sub.Close()
	s.activity.sub.Close()
	for _, scope := range scopes {
		scope.Close()
	}
}

// Close shuts the sink down and waits for its goroutines.
func (s *Sink) Close() {
	s.stopCtx()
	s.shutdown()
	s.wg.Wait()
}
