package router

import (
	"math/bits"
	"sync"
)

// Queue is a mutex-guarded FIFO over a power-of-two ring. It never drops on
// push: when the ring is three quarters full it doubles. The router keeps
// one batch window of updates in it.
type Queue[T any] struct {
	mu    sync.Mutex
	ring  []T
	first int // index of the oldest item
	n     int

	pushed    int64
	drained   int64
	discarded int64
	grows     int
}

// QueueStats is a snapshot of a Queue's size and lifetime counters.
type QueueStats struct {
	Len       int
	Cap       int
	Pushed    int64
	Drained   int64
	Discarded int64
	Grows     int
}

// NewQueue returns a queue whose ring holds at least size items.
func NewQueue[T any](size int) *Queue[T] {
	return &Queue[T]{ring: make([]T, ceilPow2(size))}
}

func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (q *Queue[T]) mask() int { return len(q.ring) - 1 }

// Push appends item and returns the queue length.
func (q *Queue[T]) Push(item T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if (q.n+1)*4 > len(q.ring)*3 {
		q.resize(len(q.ring) * 2)
	}
	q.ring[(q.first+q.n)&q.mask()] = item
	q.n++
	q.pushed++
	return q.n
}

// Drain removes and returns up to limit items, oldest first. A limit <= 0
// takes everything. An empty queue returns nil.
func (q *Queue[T]) Drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	take := q.n
	if limit > 0 && limit < take {
		take = limit
	}
	if take == 0 {
		return nil
	}

	out := make([]T, take)
	q.copyOut(out)

	var zero T
	for i := 0; i < take; i++ {
		q.ring[(q.first+i)&q.mask()] = zero
	}
	q.first = (q.first + take) & q.mask()
	q.n -= take
	q.drained += int64(take)
	return out
}

// Discard empties the queue and returns how many items were thrown away.
func (q *Queue[T]) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.n
	clear(q.ring)
	q.first, q.n = 0, 0
	q.discarded += int64(dropped)
	return dropped
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:       q.n,
		Cap:       len(q.ring),
		Pushed:    q.pushed,
		Drained:   q.drained,
		Discarded: q.discarded,
		Grows:     q.grows,
	}
}

// copyOut copies the first len(dst) queued items into dst. Lock held.
func (q *Queue[T]) copyOut(dst []T) {
	head := q.ring[q.first:min(q.first+len(dst), len(q.ring))]
	k := copy(dst, head)
	copy(dst[k:], q.ring[:len(dst)-k])
}

// resize moves the items to a ring of the given size. Lock held.
func (q *Queue[T]) resize(size int) {
	next := make([]T, size)
	q.copyOut(next[:q.n])
	q.ring = next
	q.first = 0
	q.grows++
}
