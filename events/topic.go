// Package events provides a small typed publish/subscribe channel used to
// bridge out-of-band inputs (the file-input image buffer, chat fan-out) into
// the editor session without global DOM-style events.
package events

import "sync"

// Topic delivers values of one type to every subscriber, in subscription
// order. Delivery is synchronous; publishing from a handler of the same
// topic deadlocks and is a caller bug.
type Topic[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{}
}

// Subscribe registers a handler and returns a cancel func that removes it.
// Cancel is safe to call more than once.
func (t *Topic[T]) Subscribe(fn func(T)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers a value to all current subscribers.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	subs := make([]subscriber[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Close drops every subscriber. Used when the owning session is torn down.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	t.subs = nil
	t.mu.Unlock()
}
