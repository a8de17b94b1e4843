// Package queue implements the runtime's outstanding-work list.
//
// Each entry is keyed by an id and linked into a doubly linked list, so a
// sweep can visit every matrix with unfinished work in enqueue order while
// removal of any single entry stays O(1). One mutex guards only the link
// updates; callers run their finalize work outside it.
package queue

import "sync"

type node[T any] struct {
	id         uint64
	value      T
	prev, next *node[T]
}

// Queue is a doubly linked list of pending work keyed by id.
type Queue[T any] struct {
	mu         sync.Mutex
	head, tail *node[T]
	index      map[uint64]*node[T]
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{index: make(map[uint64]*node[T])}
}

// Enqueue appends id unless it is already queued. It reports whether the
// entry was added.
func (q *Queue[T]) Enqueue(id uint64, value T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[id]; ok {
		return false
	}
	n := &node[T]{id: id, value: value, prev: q.tail}
	if q.tail != nil {
		q.tail.next = n
	} else {
		q.head = n
	}
	q.tail = n
	q.index[id] = n
	return true
}

// Remove unlinks id. It reports whether the entry was queued.
func (q *Queue[T]) Remove(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, ok := q.index[id]
	if !ok {
		return false
	}
	q.unlink(n)
	return true
}

// Pop removes and returns the oldest entry.
func (q *Queue[T]) Pop() (uint64, T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.head
	if n == nil {
		var zero T
		return 0, zero, false
	}
	q.unlink(n)
	return n.id, n.value, true
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

// IDs returns the queued ids in enqueue order without removing them.
func (q *Queue[T]) IDs() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]uint64, 0, len(q.index))
	for n := q.head; n != nil; n = n.next {
		out = append(out, n.id)
	}
	return out
}

func (q *Queue[T]) unlink(n *node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.prev, n.next = nil, nil
	delete(q.index, n.id)
}
