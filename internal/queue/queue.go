// Package queue provides the double-ended work queue used by the command engine.
package queue

// Deque defines an ordered, double-ended queue.
//
// Implementations are not goroutine-safe; callers guard them with their own lock.
type Deque[T any] interface {
	// PushBack adds items to the tail of the queue, in order.
	PushBack(items ...T)
	// PushFront adds an item to the head of the queue.
	PushFront(item T)
	// PopFront removes and returns the item at the head of the queue.
	// ok is false when the queue is empty.
	PopFront() (item T, ok bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (item T, ok bool)
	// Reset empties the queue.
	Reset()
	// IsEmpty returns true if the queue is empty.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
