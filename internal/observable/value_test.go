package observable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
		var zero T
		return zero
	}
}

func TestSubscribeReceivesCurrentValue(t *testing.T) {
	v := NewWith(7)
	s := v.Subscribe()
	defer s.Close()

	assert.Equal(t, 7, recv(t, s))
}

func TestSubscribeBeforeFirstSet(t *testing.T) {
	v := New[string]()
	s := v.Subscribe()
	defer s.Close()

	select {
	case got := <-s.C():
		t.Fatalf("unexpected value %q", got)
	default:
	}

	_, ok := v.Get()
	assert.False(t, ok)

	v.Set("ready")
	assert.Equal(t, "ready", recv(t, s))
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	v := New[int]()
	s := v.Subscribe()
	defer s.Close()

	for i := 1; i <= 5; i++ {
		v.Set(i)
	}
	assert.Equal(t, 5, recv(t, s))

	select {
	case got := <-s.C():
		t.Fatalf("unexpected extra value %d", got)
	default:
	}
}

func TestValuesArriveInOrder(t *testing.T) {
	v := New[int]()
	s := v.Subscribe()
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 1000; i++ {
			v.Set(i)
		}
	}()

	last := 0
	for last < 1000 {
		got := recv(t, s)
		require.Greater(t, got, last)
		last = got
	}
	<-done
}

func TestUpdate(t *testing.T) {
	v := NewWith([]string{"a"})
	v.Update(func(cur []string, _ bool) []string { return append(cur, "b") })

	got, ok := v.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestOnIdleFiresWhenLastSubscriberLeaves(t *testing.T) {
	v := New[int]()
	idle := 0
	v.OnIdle(func() { idle++ })

	a, b := v.Subscribe(), v.Subscribe()
	assert.Equal(t, 2, v.Subscribers())

	a.Close()
	assert.Equal(t, 0, idle)
	b.Close()
	b.Close()
	assert.Equal(t, 1, idle)
	assert.Equal(t, 0, v.Subscribers())
}

func TestCloseClosesSubscribers(t *testing.T) {
	v := NewWith(1)
	s := v.Subscribe()
	<-s.C()

	v.Close()
	_, ok := <-s.C()
	assert.False(t, ok)

	v.Set(2)
	got, _ := v.Get()
	assert.Equal(t, 1, got)

	late := v.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	late.Close()
	s.Close()
}
