package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cmdItem struct {
	name string
}

func TestDeque(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewDeque[*cmdItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		item, ok := q.PopFront()
		assert.False(ok)
		assert.Nil(item)

		item, ok = q.Peek()
		assert.False(ok)
		assert.Nil(item)
	})

	t.Run("PushBack and PopFront keep FIFO order", func(t *testing.T) {
		q := NewDeque[*cmdItem](1)

		item1, item2 := &cmdItem{"READ_ANALOG_INPUT"}, &cmdItem{"HALT"}
		q.PushBack(item1, item2)
		assert.Equal(2, q.Length())

		got, ok := q.PopFront()
		assert.True(ok)
		assert.Same(item1, got)

		got, ok = q.PopFront()
		assert.True(ok)
		assert.Same(item2, got)
		assert.True(q.IsEmpty())
	})

	t.Run("PushFront jumps the line", func(t *testing.T) {
		q := NewDeque[*cmdItem](1)

		later := &cmdItem{"SAMPLE"}
		retry := &cmdItem{"ADD_ANALOG_INPUT"}
		q.PushBack(later)
		q.PushFront(retry)

		head, ok := q.Peek()
		assert.True(ok)
		assert.Same(retry, head)
		assert.Equal(2, q.Length())
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewDeque[*cmdItem](1)
		q.PushBack(&cmdItem{"a"}, &cmdItem{"b"})
		q.Reset()

		assert.True(q.IsEmpty())
		_, ok := q.PopFront()
		assert.False(ok)
	})
}

func TestDeque_GrowWrapped(t *testing.T) {
	require := require.New(t)

	q := NewDeque[int](minRingSize)

	// move head away from index 0 so the ring wraps before growing
	for i := 0; i < 10; i++ {
		q.PushBack(i)
	}
	for i := 0; i < 10; i++ {
		v, ok := q.PopFront()
		require.True(ok)
		require.Equal(i, v)
	}

	for i := 0; i < 100; i++ {
		q.PushBack(i)
	}
	q.PushFront(-1)
	require.Equal(101, q.Length())

	for i := -1; i < 100; i++ {
		v, ok := q.PopFront()
		require.True(ok)
		require.Equal(i, v)
	}
	require.True(q.IsEmpty())
}

func TestDeque_ConcurrentWithExternalLock(t *testing.T) {
	var mu sync.Mutex
	q := NewDeque[int](1)

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if i%2 == 0 {
				q.PushBack(i)
			} else {
				q.PushFront(i)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Length())
}
