// Package mailbox provides a single-slot buffer where the latest request
// wins. The run loop drains it; schedules and the watcher fill it. It is
// not a queue: coalescing is the point, since two pending backup requests
// do the same work as one.
package mailbox

import "sync"

type Mailbox[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond
	item *T
}

func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores a request, replacing any pending one. It never blocks.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.item = &v
	m.mu.Unlock()
	m.cond.Signal()
}

// Take blocks until a request is available, then returns it and clears
// the slot.
func (m *Mailbox[T]) Take() T {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.item == nil {
		m.cond.Wait()
	}

	v := *m.item
	m.item = nil
	return v
}

// TryTake returns the pending request or nil without blocking.
func (m *Mailbox[T]) TryTake() *T {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.item == nil {
		return nil
	}
	v := m.item
	m.item = nil
	return v
}
