package container

import "sync"

// Queue is an unbounded FIFO backed by a ring buffer.
// Enqueue and TryDequeue are safe to call from different goroutines.
type Queue[T any] struct {
	mtx  sync.Mutex
	buf  []T
	head int // index of the first element
	size int
}

// NewQueue creates a queue with room for capacity elements before it grows.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

func (q *Queue[T]) Len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.size
}

// Enqueue appends value at the tail.
func (q *Queue[T]) Enqueue(value T) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = value
	q.size++
}

// TryDequeue removes and returns the head, or reports false when empty.
func (q *Queue[T]) TryDequeue() (value T, ok bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if q.size == 0 {
		return value, false
	}
	var zero T
	value = q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return value, true
}

func (q *Queue[T]) grow() {
	buf := make([]T, len(q.buf)*2)
	for i := 0; i < q.size; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
