// Package observable provides a last-value-cached broadcast value.
package observable

import "sync"

// Value holds the latest value of T and fans it out to subscribers. A new
// subscriber immediately receives the current value if one has been set.
// Each subscriber channel holds at most one pending value: a slow reader
// skips intermediate values but never sees them out of order.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	has    bool
	subs   map[*Subscription[T]]struct{}
	closed bool
	onIdle func()
}

// Subscription is one reader of a Value.
type Subscription[T any] struct {
	v    *Value[T]
	ch   chan T
	once sync.Once
}

// New returns an empty Value.
func New[T any]() *Value[T] {
	return &Value[T]{subs: make(map[*Subscription[T]]struct{})}
}

// NewWith returns a Value already holding initial.
func NewWith[T any](initial T) *Value[T] {
	v := New[T]()
	v.cur, v.has = initial, true
	return v
}

// Get returns the current value and whether one has been set.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.has
}

// Set replaces the current value and publishes it to every subscriber.
// Set after Close is ignored.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.cur, v.has = val, true
	for s := range v.subs {
		s.offer(val)
	}
}

// Update applies fn to the current value under the lock and publishes the
// result.
func (v *Value[T]) Update(fn func(cur T, ok bool) T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.cur, v.has = fn(v.cur, v.has), true
	for s := range v.subs {
		s.offer(v.cur)
	}
}

// Subscribe registers a new reader. Subscribing to a closed Value returns a
// subscription whose channel is already closed.
func (v *Value[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{v: v, ch: make(chan T, 1)}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	if v.has {
		s.ch <- v.cur
	}
	v.subs[s] = struct{}{}
	return s
}

// Subscribers returns the number of open subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// OnIdle registers fn to run, outside the lock, whenever the last
// subscription is closed.
func (v *Value[T]) OnIdle(fn func()) {
	v.mu.Lock()
	v.onIdle = fn
	v.mu.Unlock()
}

// Close closes every subscriber channel. Later Sets are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for s := range v.subs {
		s.once.Do(func() { close(s.ch) })
	}
	v.subs = nil
}

// offer must be called with the value's lock held.
func (s *Subscription[T]) offer(val T) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- val
}

// C returns the channel values arrive on. It is closed by Close on either
// the subscription or the value.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close detaches the subscription and closes its channel.
func (s *Subscription[T]) Close() {
	v := s.v

	v.mu.Lock()
	_, ok := v.subs[s]
	if ok {
		delete(v.subs, s)
	}
	idle := ok && len(v.subs) == 0
	fn := v.onIdle
	s.once.Do(func() { close(s.ch) })
	v.mu.Unlock()

	if idle && fn != nil {
		fn()
	}
}
