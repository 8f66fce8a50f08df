// Package route turns a selected notification into a navigation intent.
//
// The router is a small state machine: Idle -> Resolving -> Resolved or
// Unresolvable -> Idle. Resolving looks the notification's project up in
// the role-filtered project view. When the project is not there yet (the
// view is still loading, or the project was created moments before the
// push arrived) the router waits for further view updates, bounded by a
// timeout, before giving up with the generic notifications intent.
package route

import (
	"context"
	"errors"
	"log"
	gosync "sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
	"github.com/nhle/erp-sync/internal/observable"
	"github.com/nhle/erp-sync/internal/sink"
)

// State is the router's state.
type State int

const (
	Idle State = iota
	Resolving
	Resolved
	Unresolvable
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Unresolvable:
		return "unresolvable"
	default:
		return "idle"
	}
}

var (
	// ErrNoProject is returned when the notification names no project.
	ErrNoProject = errors.New("notification has no project")

	// ErrResolutionTimeout is returned when the project did not show up in
	// the project view before the timeout.
	ErrResolutionTimeout = errors.New("notification project did not resolve in time")
)

// DefaultTimeout bounds the wait for a project that is not in the view yet.
const DefaultTimeout = 3 * time.Second

// Options configures a Router.
type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
}

// Router resolves notifications one at a time.
type Router struct {
	projects *observable.Value[sink.State[model.Project]]
	inbox    *notify.Inbox
	timeout  time.Duration
	logger   *log.Logger

	state   *observable.Value[State]
	intents chan model.Intent

	mu      gosync.Mutex // serializes resolutions
	outMu   gosync.Mutex
	outcome State

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Router reading the given project view. inbox may be nil.
func New(projects *observable.Value[sink.State[model.Project]], inbox *notify.Inbox, opts Options) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		projects: projects,
		inbox:    inbox,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		state:    observable.NewWith(Idle),
		intents:  make(chan model.Intent, 8),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State is the observable machine state.
func (r *Router) State() *observable.Value[State] {
	return r.state
}

// LastOutcome returns the terminal state of the most recent resolution, or
// Idle before the first one.
func (r *Router) LastOutcome() State {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	return r.outcome
}

// Intents delivers the intents produced by Select. Each is delivered once.
func (r *Router) Intents() <-chan model.Intent {
	return r.intents
}

// Route resolves n. It always returns a usable intent; the error explains
// why the fallback intent was chosen. Routing the same notification twice
// yields the same intent twice.
func (r *Router) Route(ctx context.Context, n model.Notification) (model.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Set(Resolving)

	if n.Hints.ProjectID == nil || *n.Hints.ProjectID == "" {
		return r.finish(Unresolvable, model.FallbackIntent(n.ID), ErrNoProject)
	}
	projectID := *n.Hints.ProjectID

	sub := r.projects.Subscribe()
	defer sub.Close()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case st, ok := <-sub.C():
			if !ok {
				return r.finish(Unresolvable, model.FallbackIntent(n.ID), ErrResolutionTimeout)
			}
			for i := range st.Items {
				if st.Items[i].ID == projectID {
					p := st.Items[i]
					return r.finish(Resolved, intentFor(n, &p), nil)
				}
			}
		case <-timer.C:
			r.logger.Printf("route: project %s not found within %s", projectID, r.timeout)
			return r.finish(Unresolvable, model.FallbackIntent(n.ID), ErrResolutionTimeout)
		case <-ctx.Done():
			return r.finish(Unresolvable, model.FallbackIntent(n.ID), ctx.Err())
		}
	}
}

func (r *Router) finish(terminal State, intent model.Intent, err error) (model.Intent, error) {
	r.outMu.Lock()
	r.outcome = terminal
	r.outMu.Unlock()

	r.state.Set(terminal)
	r.state.Set(Idle)
	return intent, err
}

func intentFor(n model.Notification, p *model.Project) model.Intent {
	return model.Intent{
		Section:        model.SectionProjects,
		Project:        p,
		SubTab:         SubTabFor(n.Hints),
		TaskID:         n.Hints.TaskID,
		MeetingID:      n.Hints.MeetingID,
		NotificationID: n.ID,
	}
}

// SubTabFor picks the project sub-tab for a set of hints. A recognised
// targetTab wins; otherwise a task or meeting hint selects its tab, and
// everything else opens the overview.
func SubTabFor(h model.DeepLinkHints) model.SubTab {
	if h.TargetTab != nil {
		if tab, ok := model.ParseSubTab(*h.TargetTab); ok {
			return tab
		}
	}
	switch {
	case h.TaskID != nil && *h.TaskID != "":
		return model.SubTabTasks
	case h.MeetingID != nil && *h.MeetingID != "":
		return model.SubTabMeetings
	}
	return model.DefaultSubTab
}

// Select handles a tap on a notification: it marks it read, resolves it in
// the background and delivers the intent on Intents.
func (r *Router) Select(n model.Notification) {
	if r.inbox != nil {
		r.inbox.MarkRead(n.ID)
	}

	r.wg.Go(func() {
		intent, err := r.Route(r.ctx, n)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Printf("route: notification %s: %v", n.ID, err)
		}
		select {
		case r.intents <- intent:
		case <-r.ctx.Done():
		}
	})
}

// Close abandons pending resolutions and waits for them to finish.
func (r *Router) Close() {
	r.cancel()
	r.wg.Wait()
	r.state.Close()
}
