package types

import (
	"errors"
	"reflect"

	"github.com/google/uuid"
)

var (
	// ErrNilItem is returned by Buffer.Put when it is handed no item.
	ErrNilItem = errors.New("nil item rejected")

	// ErrEndOfStream is returned by Buffer.Get once the buffer is closed
	// and drained. It is a stop cue, not a failure.
	ErrEndOfStream = errors.New("end of stream")

	// ErrClosed is returned by Buffer.Put after Close. The caller keeps
	// ownership of the item it tried to put.
	ErrClosed = errors.New("buffer closed")

	ErrInvalidCapacity = errors.New("buffer capacity must be at least 1")

	// ErrIncompatible is the expected "these two items cannot be combined"
	// outcome of a Combiner.
	ErrIncompatible = errors.New("incompatible items")

	// ErrWorkerAborted wraps any failure that ends a worker early.
	ErrWorkerAborted = errors.New("worker aborted")
)

// Generator produces new items for producers.
type Generator[T any] interface {
	Generate() (T, error)
}

// Combiner merges two items into a new one, or reports ErrIncompatible.
type Combiner[T any] interface {
	Combine(a, b T) (T, error)
}

// Sink renders combine results. Calls are serialized by the consumers'
// print lock, so implementations need no locking of their own.
type Sink[T any] interface {
	Render(item T)
	Mark(symbol string)
}

// Releaser ends the lifetime of an item. The workers call it exactly once
// per item.
type Releaser[T any] interface {
	Release(item T)
}

// Summarizer reduces an item to the number accumulated in SumTotal.
type Summarizer[T any] interface {
	Sum(item T) int64
}

// Role tells producer and consumer results apart.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// WorkerResult is handed back once by every worker when its loop ends.
type WorkerResult struct {
	RunID       uuid.UUID // run the worker belonged to
	WorkerID    int
	Role        Role
	SumTotal    int64 // sum of Summarizer.Sum over every item handled
	MatrixTotal int   // items produced or consumed
	MultTotal   int   // successful combines (consumers only)
	Rejected    int   // ErrIncompatible outcomes (consumers only)
	// MultTotal+Rejected is the number of combine attempts.
	Err         error // non-nil when the worker aborted
}

// Totals is the merge of several WorkerResults of the same role.
type Totals struct {
	Workers     int
	SumTotal    int64
	MatrixTotal int
	MultTotal   int
	Rejected    int
}

// Add folds r into t.
func (t *Totals) Add(r WorkerResult) {
	t.Workers++
	t.SumTotal += r.SumTotal
	t.MatrixTotal += r.MatrixTotal
	t.MultTotal += r.MultTotal
	t.Rejected += r.Rejected
}

// IsNil reports whether v is a nil interface or a nil value of a nillable
// kind.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
