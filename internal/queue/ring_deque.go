package queue

const minRingSize = 16

// ringDeque implements Deque with a growable ring buffer, so pushes at either
// end and pops at the head are O(1) amortized.
type ringDeque[T any] struct {
	buf  []T
	head int
	size int
}

// NewDeque creates a new ring buffer backed Deque.
func NewDeque[T any](prealloc int) Deque[T] {
	if prealloc < minRingSize {
		prealloc = minRingSize
	}

	return &ringDeque[T]{buf: make([]T, prealloc)}
}

func (q *ringDeque[T]) PushBack(items ...T) {
	for _, item := range items {
		q.grow()
		q.buf[(q.head+q.size)%len(q.buf)] = item
		q.size++
	}
}

func (q *ringDeque[T]) PushFront(item T) {
	q.grow()
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = item
	q.size++
}

func (q *ringDeque[T]) PopFront() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.buf[q.head]
	q.buf[q.head] = zero // release reference
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	return item, true
}

func (q *ringDeque[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}

	return q.buf[q.head], true
}

func (q *ringDeque[T]) Reset() {
	clear(q.buf)
	q.head = 0
	q.size = 0
}

func (q *ringDeque[T]) IsEmpty() bool {
	return q.size == 0
}

func (q *ringDeque[T]) Length() int {
	return q.size
}

// grow doubles the buffer when full, unrolling the ring so head is 0.
func (q *ringDeque[T]) grow() {
	if q.size < len(q.buf) {
		return
	}

	buf := make([]T, len(q.buf)*2)
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf = buf
	q.head = 0
}
