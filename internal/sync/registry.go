// Package sync owns every live listener on the remote document store. Any
// number of readers may subscribe to the same query; the registry keeps a
// single listener per query key, fans its snapshots out and tears it down
// once nobody has been listening for a grace period.
package sync

import (
	"context"
	"log"
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/observable"
)

// SyncState represents the current state of one subscription key.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncLive
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncLive:
		return "live"
	case SyncFailed:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single subscription key.
type SyncStatus struct {
	Key         string
	State       SyncState
	LastSync    time.Time
	Error       error
	Subscribers int
}

// Result is one value on a subscription stream: either a complete
// snapshot, or a failure. A transient failure still carries the last good
// snapshot; a permission failure carries none.
type Result struct {
	Snapshot docstore.Snapshot
	Err      *SyncError
}

// Default timings.
const (
	DefaultGracePeriod   = 30 * time.Second
	DefaultRetryInterval = 5 * time.Second
)

// Options configures a Registry.
type Options struct {
	// GracePeriod is how long a listener with no subscribers is kept
	// before it is torn down.
	GracePeriod time.Duration

	// RetryInterval is the delay before a transiently failed listener is
	// opened again.
	RetryInterval time.Duration

	Logger *log.Logger
}

// entry is the registry's record for one subscription key.
type entry struct {
	key   string
	query docstore.Query
	value *observable.Value[Result]

	listener docstore.Listener
	gen      int  // bumped on every open; stale callbacks are ignored
	opening  bool // an open is in flight for gen
	failed   bool // the listener for gen reported an error
	subs     int
	denied   bool

	lastGood *docstore.Snapshot
	teardown *time.Timer
	retry    *time.Timer
	status   SyncStatus
}

// Registry is the single owner of all remote listeners.
type Registry struct {
	store  docstore.Store
	opts   Options
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       gosync.Mutex
	entries  map[string]*entry
	closed   bool
	statusCh chan SyncStatus
}

// New creates a Registry over store.
func New(store docstore.Store, opts Options) *Registry {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
		statusCh: make(chan SyncStatus, 16),
	}
}

// Subscription is one reader of a query's snapshot stream.
type Subscription struct {
	r    *Registry
	e    *entry
	sub  *observable.Subscription[Result]
	once gosync.Once
}

// C returns the result stream. A late subscriber first receives the cached
// last result. The channel is closed when the subscription or the registry
// is closed.
func (s *Subscription) C() <-chan Result {
	return s.sub.C()
}

// Key returns the subscription key the stream belongs to.
func (s *Subscription) Key() string {
	return s.e.key
}

// Close releases the subscription. When it was the last one for its key,
// the listener is scheduled for teardown after the grace period.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.sub.Close()
		s.r.release(s.e)
	})
}

// Subscribe returns a stream of complete snapshots for q. Identical
// queries share a single remote listener.
func (r *Registry) Subscribe(q docstore.Query) *Subscription {
	key := q.Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		v := observable.New[Result]()
		v.Close()
		return &Subscription{r: r, e: &entry{key: key, query: q, value: v}, sub: v.Subscribe()}
	}

	e, ok := r.entries[key]
	open := false
	if !ok {
		e = &entry{
			key:    key,
			query:  q,
			value:  observable.New[Result](),
			status: SyncStatus{Key: key, State: SyncIdle},
		}
		r.entries[key] = e
		open = true
	} else {
		if e.teardown != nil {
			e.teardown.Stop()
			e.teardown = nil
		}
		// A transient failure that happened while nobody was subscribed was
		// not retried; pick it up again now.
		if e.listener == nil && !e.opening && e.retry == nil && !e.denied {
			open = true
		}
	}
	e.subs++
	e.status.Subscribers = e.subs
	sub := &Subscription{r: r, e: e, sub: e.value.Subscribe()}

	var gen int
	if open {
		gen = e.beginOpen()
	}
	r.mu.Unlock()

	if open {
		r.open(e, gen)
	}
	return sub
}

// beginOpen starts a new listener generation. Must be called with the lock
// held; the caller then runs open without it.
func (e *entry) beginOpen() int {
	e.gen++
	e.opening = true
	e.failed = false
	return e.gen
}

// open starts a listener for e. It must be called without the lock held:
// a store may invoke the handler before Listen returns.
func (r *Registry) open(e *entry, gen int) {
	l, err := r.store.Listen(r.ctx, e.query, r.handler(e, gen))

	r.mu.Lock()
	current := r.entries[e.key] == e && e.gen == gen
	if current {
		e.opening = false
	}
	if err != nil {
		r.mu.Unlock()
		r.handler(e, gen)(docstore.Snapshot{}, err)
		return
	}
	// The listener already failed from inside Listen, or a newer generation
	// replaced it.
	if !current || e.failed {
		r.mu.Unlock()
		l.Stop()
		return
	}
	e.listener = l
	r.mu.Unlock()

	r.logger.Printf("sync: listening on %s", e.key)
}

func (r *Registry) handler(e *entry, gen int) docstore.SnapshotHandler {
	return func(snap docstore.Snapshot, err error) {
		var stale docstore.Listener
		defer func() {
			if stale != nil {
				stale.Stop()
			}
		}()

		r.mu.Lock()
		defer r.mu.Unlock()

		if r.entries[e.key] != e || e.gen != gen {
			return
		}

		if err == nil {
			e.denied = false
			e.lastGood = &snap
			e.value.Set(Result{Snapshot: snap})
			e.status.State = SyncLive
			e.status.Error = nil
			e.status.LastSync = time.Now()
			r.sendStatus(e.status)
			return
		}

		if docstore.IsCanceled(err) && r.ctx.Err() != nil {
			return
		}

		serr := newSyncError(e.query.Collection, err)
		res := Result{Err: serr}
		if serr.Kind == Transient && e.lastGood != nil {
			res.Snapshot = *e.lastGood
		}
		if serr.Kind == PermissionDenied {
			e.denied = true
			e.lastGood = nil
		}

		e.failed = true
		stale, e.listener = e.listener, nil
		e.value.Set(res)
		e.status.State = SyncFailed
		e.status.Error = serr
		r.sendStatus(e.status)
		r.logger.Printf("sync: %v", serr)

		if serr.Kind == Transient && e.subs > 0 {
			e.retry = time.AfterFunc(r.opts.RetryInterval, func() {
				r.reopen(e, gen)
			})
		}
	}
}

// reopen retries a transiently failed listener.
func (r *Registry) reopen(e *entry, failedGen int) {
	r.mu.Lock()
	if r.closed || r.entries[e.key] != e || e.gen != failedGen {
		r.mu.Unlock()
		return
	}
	e.retry = nil
	if e.subs == 0 {
		r.mu.Unlock()
		return
	}
	gen := e.beginOpen()
	r.mu.Unlock()

	r.logger.Printf("sync: retrying %s", e.key)
	r.open(e, gen)
}

// release drops one subscriber from e.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[e.key] != e {
		return
	}
	e.subs--
	e.status.Subscribers = e.subs
	if e.subs > 0 {
		return
	}

	if e.teardown != nil {
		e.teardown.Stop()
	}
	e.teardown = time.AfterFunc(r.opts.GracePeriod, func() {
		r.teardown(e)
	})
}

// teardown closes e's listener if it is still unused.
func (r *Registry) teardown(e *entry) {
	r.mu.Lock()
	if r.entries[e.key] != e || e.subs > 0 {
		r.mu.Unlock()
		return
	}
	l := r.remove(e)
	r.mu.Unlock()

	if l != nil {
		l.Stop()
	}
	r.logger.Printf("sync: tore down %s", e.key)
}

// remove drops e and returns its listener, which the caller stops once the
// lock is released. Must be called with the lock held.
func (r *Registry) remove(e *entry) docstore.Listener {
	delete(r.entries, e.key)
	if e.teardown != nil {
		e.teardown.Stop()
		e.teardown = nil
	}
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
	l := e.listener
	e.listener = nil
	e.value.Close()
	return l
}

// Statuses returns the current sync status of every live key, ordered by
// key.
func (r *Registry) Statuses() []SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(r.entries))
	for _, e := range r.entries {
		statuses = append(statuses, e.status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })
	return statuses
}

// Close tears down every listener and closes every stream.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var listeners []docstore.Listener
	for _, e := range r.entries {
		if l := r.remove(e); l != nil {
			listeners = append(listeners, l)
		}
	}
	r.cancel()
	close(r.statusCh)
	r.mu.Unlock()

	for _, l := range listeners {
		l.Stop()
	}
}

// sendStatus publishes a status change without blocking. Must be called
// with the lock held.
func (r *Registry) sendStatus(st SyncStatus) {
	select {
	case r.statusCh <- st:
	default:
		// Drop if channel is full to avoid blocking listeners.
	}
}
