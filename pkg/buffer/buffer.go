// Package buffer implements the fixed-capacity FIFO shared by producers and
// consumers.
//
// Put blocks while the buffer is full and Get blocks while it is empty.
// There is no timeout and no context: the only way out of a blocked call is
// progress by the other side or Close. A Get that wakes to an empty buffer
// reports types.ErrEndOfStream only when the buffer has been closed; any
// other empty wake goes back to waiting. Items still queued at Close are
// handed out before end of stream is reported.
package buffer

import (
	"sync"

	"github.com/SinaHkz/pcmatrix/pkg/types"
)

type Buffer[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	slots  []T
	head   int // next slot to read
	tail   int // next slot to fill
	count  int
	closed bool
}

// New returns an empty buffer holding at most capacity items.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, types.ErrInvalidCapacity
	}
	b := &Buffer[T]{slots: make([]T, capacity)}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b, nil
}

// Put appends item, waiting for a free slot if the buffer is full.
// A nil item is refused with types.ErrNilItem without blocking.
func (b *Buffer[T]) Put(item T) error {
	if types.IsNil(item) {
		return types.ErrNilItem
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == len(b.slots) && !b.closed {
		b.notFull.Wait()
	}
	if b.closed {
		return types.ErrClosed
	}

	b.slots[b.tail] = item
	b.tail = (b.tail + 1) % len(b.slots)
	b.count++

	b.notEmpty.Signal()
	return nil
}

// Get removes the oldest item, waiting while the buffer is empty.
func (b *Buffer[T]) Get() (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 {
		if b.closed {
			var zero T
			return zero, types.ErrEndOfStream
		}
		b.notEmpty.Wait()
	}

	item := b.slots[b.head]
	var zero T
	b.slots[b.head] = zero // the buffer no longer owns it
	b.head = (b.head + 1) % len(b.slots)
	b.count--

	b.notFull.Signal()
	return item, nil
}

// Close stops accepting items and wakes every blocked caller. It is safe
// to call more than once.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.notFull.Broadcast()
	b.notEmpty.Broadcast()
}

// Drain removes every queued item and returns them oldest first. Ownership
// of the returned items passes to the caller.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, 0, b.count)
	var zero T
	for b.count > 0 {
		out = append(out, b.slots[b.head])
		b.slots[b.head] = zero
		b.head = (b.head + 1) % len(b.slots)
		b.count--
	}
	b.notFull.Broadcast()
	return out
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Buffer[T]) Cap() int { return len(b.slots) }

func (b *Buffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
