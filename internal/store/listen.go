package store

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/erp-sync/internal/docstore"
)

// listener is one live query over the emulator. A write to its collection
// marks it dirty; its goroutine then re-reads the collection and delivers a
// complete snapshot. Marks coalesce, so a burst of writes may produce a
// single snapshot, but it always reflects the latest state.
type listener struct {
	id    string
	store *SQLiteStore
	query docstore.Query
	h     docstore.SnapshotHandler

	dirty chan struct{}
	done  chan struct{}
	once  gosync.Once
}

// Listen opens a live listener for q. The current snapshot is delivered
// right away on the listener's goroutine.
func (s *SQLiteStore) Listen(ctx context.Context, q docstore.Query, h docstore.SnapshotHandler) (docstore.Listener, error) {
	l := &listener{
		id:    uuid.New().String(),
		store: s,
		query: q,
		h:     h,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO listen_log (id, query_key, opened_at) VALUES (?, ?, ?)",
		l.id, q.Key(), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("recording listener for %s: %w", q, err)
	}

	s.mu.Lock()
	set, ok := s.listeners[q.Collection]
	if !ok {
		set = make(map[*listener]struct{})
		s.listeners[q.Collection] = set
	}
	set[l] = struct{}{}
	s.mu.Unlock()

	l.dirty <- struct{}{}
	go l.run(ctx)

	return l, nil
}

func (l *listener) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case <-l.dirty:
		}

		l.store.mu.Lock()
		failure := l.store.rules[l.query.Collection]
		l.store.mu.Unlock()

		if failure != nil {
			l.deliver(docstore.Snapshot{}, failure)
			l.Stop()
			return
		}

		snap, err := l.store.Query(ctx, l.query)
		if err != nil {
			if l.stopped() || ctx.Err() != nil {
				return
			}
			l.deliver(docstore.Snapshot{}, fmt.Errorf("%w: %w", docstore.ErrUnavailable, err))
			l.Stop()
			return
		}
		l.deliver(snap, nil)
	}
}

func (l *listener) deliver(snap docstore.Snapshot, err error) {
	if l.stopped() {
		return
	}
	l.h(snap, err)
}

func (l *listener) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Stop detaches the listener. It is safe to call more than once.
func (l *listener) Stop() {
	l.once.Do(func() {
		close(l.done)

		s := l.store
		s.mu.Lock()
		if set, ok := s.listeners[l.query.Collection]; ok {
			delete(set, l)
			if len(set) == 0 {
				delete(s.listeners, l.query.Collection)
			}
		}
		s.mu.Unlock()

		_, err := s.db.Exec(
			"UPDATE listen_log SET closed_at = ? WHERE id = ?",
			time.Now().UTC(), l.id,
		)
		if err != nil {
			s.logger.Printf("store: closing listener %s: %v", l.id, err)
		}
	})
}

// notify marks every listener on collection dirty.
func (s *SQLiteStore) notify(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for l := range s.listeners[collection] {
		select {
		case l.dirty <- struct{}{}:
		default:
		}
	}
}

// Fail makes every listener on collection, current and future, end with
// err until ClearFailure is called. It simulates security-rule rejections
// and network loss.
func (s *SQLiteStore) Fail(collection string, err error) {
	s.mu.Lock()
	s.rules[collection] = err
	s.mu.Unlock()
	s.notify(collection)
}

// ClearFailure removes an injected failure.
func (s *SQLiteStore) ClearFailure(collection string) {
	s.mu.Lock()
	delete(s.rules, collection)
	s.mu.Unlock()
}

// ListenCount returns how many listeners have ever been opened for the
// query key.
func (s *SQLiteStore) ListenCount(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM listen_log WHERE query_key = ?", key)
	if err != nil {
		return 0, fmt.Errorf("counting listeners for %s: %w", key, err)
	}
	return n, nil
}

// ActiveListeners returns how many listeners for the query key are open.
func (s *SQLiteStore) ActiveListeners(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM listen_log WHERE query_key = ? AND closed_at IS NULL", key)
	if err != nil {
		return 0, fmt.Errorf("counting active listeners for %s: %w", key, err)
	}
	return n, nil
}
