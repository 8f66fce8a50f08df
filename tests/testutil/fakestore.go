package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
)

// FakeStore is a scripted docstore.Store. Tests push snapshots and errors
// to the listeners of a query key by hand and count how many listeners
// were opened.
type FakeStore struct {
	mu        sync.Mutex
	listeners map[string][]*fakeListener
	opens     map[string]int
	writes    map[string]model.Fields
	deletes   []string
	listenErr error
	delay     time.Duration
	onStop    func()
}

type fakeListener struct {
	h       docstore.SnapshotHandler
	stopped bool
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		listeners: make(map[string][]*fakeListener),
		opens:     make(map[string]int),
		writes:    make(map[string]model.Fields),
	}
}

// Listen records a new listener for q.
func (f *FakeStore) Listen(_ context.Context, q docstore.Query, h docstore.SnapshotHandler) (docstore.Listener, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listenErr != nil {
		return nil, f.listenErr
	}
	l := &fakeListener{h: h}
	key := q.Key()
	f.listeners[key] = append(f.listeners[key], l)
	f.opens[key]++

	return docstore.ListenerFunc(func() {
		f.mu.Lock()
		l.stopped = true
		hook := f.onStop
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
	}), nil
}

// SlowListen makes every Listen call take d before it registers.
func (f *FakeStore) SlowListen(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// OnStop runs fn whenever a listener is stopped.
func (f *FakeStore) OnStop(fn func()) {
	f.mu.Lock()
	f.onStop = fn
	f.mu.Unlock()
}

// Set records the write.
func (f *FakeStore) Set(_ context.Context, path string, fields model.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	merged := model.Fields{}
	for k, v := range f.writes[path] {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	f.writes[path] = merged
	return nil
}

// Delete records the deletion.
func (f *FakeStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.writes, path)
	f.deletes = append(f.deletes, path)
	return nil
}

// Written returns the merged fields written to path.
func (f *FakeStore) Written(path string) model.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[path]
}

// FailListen makes subsequent Listen calls return err. Pass nil to reset.
func (f *FakeStore) FailListen(err error) {
	f.mu.Lock()
	f.listenErr = err
	f.mu.Unlock()
}

// Opens returns how many listeners were opened for key.
func (f *FakeStore) Opens(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[key]
}

// Active returns how many listeners for key have not been stopped.
func (f *FakeStore) Active(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, l := range f.listeners[key] {
		if !l.stopped {
			n++
		}
	}
	return n
}

// Emit delivers snap to every active listener of key on the caller's
// goroutine.
func (f *FakeStore) Emit(key string, snap docstore.Snapshot) {
	for _, h := range f.active(key) {
		h(snap, nil)
	}
}

// EmitDocs delivers a snapshot built from docs.
func (f *FakeStore) EmitDocs(key string, docs ...docstore.Document) {
	f.Emit(key, docstore.Snapshot{Documents: docs})
}

// Fail delivers err to every active listener of key. The listeners end.
func (f *FakeStore) Fail(key string, err error) {
	handlers := f.active(key)

	f.mu.Lock()
	for _, l := range f.listeners[key] {
		l.stopped = true
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(docstore.Snapshot{}, err)
	}
}

func (f *FakeStore) active(key string) []docstore.SnapshotHandler {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []docstore.SnapshotHandler
	for _, l := range f.listeners[key] {
		if !l.stopped {
			out = append(out, l.h)
		}
	}
	return out
}

// Doc builds a document from alternating key/value pairs.
func Doc(id string, kv ...any) docstore.Document {
	fields := model.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	return docstore.Document{ID: id, Fields: fields}
}
