// Package queue provides a bounded FIFO that never blocks producers.
// When full, the oldest element is discarded to make room.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

// DropOldest is a bounded multi-producer queue with a drop-oldest overflow policy.
type DropOldest[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	notify chan struct{}
	closed bool

	dropped atomic.Uint64
	onDrop  func(T)
}

// New creates a queue holding at most capacity elements. Capacity < 1 is raised to 1.
// onDrop, if non-nil, is called (outside the lock) with every discarded element.
func New[T any](capacity int, onDrop func(T)) *DropOldest[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &DropOldest[T]{
		items:  make([]T, capacity),
		notify: make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// Push appends v. If the queue is full the oldest element is evicted.
// Returns false if the queue is closed.
func (q *DropOldest[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	var (
		evicted    T
		hasEvicted bool
	)
	if q.size == len(q.items) {
		evicted = q.items[q.head]
		hasEvicted = true
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}
	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++

	// notify is closed only under mu, so the send is safe here
	select {
	case q.notify <- struct{}{}:
	default:
	}
	q.mu.Unlock()

	if hasEvicted {
		q.dropped.Add(1)
		if q.onDrop != nil {
			q.onDrop(evicted)
		}
	}
	return true
}

// TryPop removes and returns the oldest element without blocking.
func (q *DropOldest[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

// Pop blocks until an element is available, the queue is closed and drained,
// or ctx is done. ok is false in the latter two cases.
func (q *DropOldest[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		if v, ok = q.TryPop(); ok {
			return v, true
		}

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return v, false
		}

		select {
		case <-ctx.Done():
			return v, false
		case <-q.notify:
		}
	}
}

// Close stops accepting new elements and wakes blocked consumers.
// Elements already queued can still be popped.
func (q *DropOldest[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.notify)
	q.mu.Unlock()
}

// Len returns the number of queued elements.
func (q *DropOldest[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *DropOldest[T]) Cap() int {
	return len(q.items)
}

// Dropped returns the number of elements evicted so far.
func (q *DropOldest[T]) Dropped() uint64 {
	return q.dropped.Load()
}
