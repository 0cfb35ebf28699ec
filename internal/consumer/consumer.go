package consumer

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/SinaHkz/pcmatrix/pkg/backlog"
	"github.com/SinaHkz/pcmatrix/pkg/buffer"
	"github.com/SinaHkz/pcmatrix/pkg/types"
)

// Markers rendered between the operands and the product.
const (
	TimesMarker  = "X"
	EqualsMarker = "="
)

// Env is what every consumer of a run shares.
type Env[T any] struct {
	RunID    uuid.UUID
	Buffer   *buffer.Buffer[T]
	Counters *backlog.Counters
	Target   int64 // total items all consumers together may take

	// PrintLock serializes combine+render across consumers. It must never
	// be taken while the buffer lock is held.
	PrintLock *sync.Mutex

	Combiner   types.Combiner[T]
	Sink       types.Sink[T]
	Releaser   types.Releaser[T]
	Summarizer types.Summarizer[T]

	Logger *log.Logger
}

type state int

const (
	needFirst state = iota
	needSecond
	combine
	done
)

func (s state) String() string {
	switch s {
	case needFirst:
		return "need-first"
	case needSecond:
		return "need-second"
	case combine:
		return "combine"
	case done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// worker carries the loop state of one consumer.
type worker[T any] struct {
	id  int
	env Env[T]
	res types.WorkerResult

	st                    state
	first, second         T
	haveFirst, haveSecond bool
	product               T
	haveProduct           bool
}

// Run executes one consumer loop: items are taken in pairs and combined
// until the shared target is reached or the buffer reports end of stream.
// On an incompatible pair the first item is kept and paired with the next
// one.
func Run[T any](id int, env Env[T]) types.WorkerResult {
	w := &worker[T]{
		id:  id,
		env: env,
		res: types.WorkerResult{RunID: env.RunID, WorkerID: id, Role: types.RoleConsumer},
	}
	w.loop()
	return w.res
}

func (w *worker[T]) loop() {
	defer func() {
		if r := recover(); r != nil {
			w.res.Err = fmt.Errorf("%w: consumer %d in %s: %v", types.ErrWorkerAborted, w.id, w.st, r)
		}
		w.releaseHeld()
		logf(w.env.Logger, "[consumer %02d] done: consumed=%d multiplied=%d rejected=%d sum=%d",
			w.id, w.res.MatrixTotal, w.res.MultTotal, w.res.Rejected, w.res.SumTotal)
	}()

	for w.st = needFirst; w.st != done; {
		w.st = w.step(w.st)
	}
}

func (w *worker[T]) step(st state) state {
	switch st {
	case needFirst:
		if w.targetReached() {
			return done
		}
		item, ok := w.take()
		if !ok {
			return done
		}
		w.first, w.haveFirst = item, true
		return needSecond

	case needSecond:
		// Ending here with an odd item: Done releases it.
		if w.targetReached() {
			return done
		}
		item, ok := w.take()
		if !ok {
			return done
		}
		w.second, w.haveSecond = item, true
		return combine

	case combine:
		next, err := w.combine()
		if err != nil {
			w.res.Err = fmt.Errorf("%w: consumer %d: combine: %w", types.ErrWorkerAborted, w.id, err)
			return done
		}
		return next
	}
	return done
}

func (w *worker[T]) targetReached() bool {
	return w.env.Counters.Consumed.Load() >= w.env.Target
}

// take pulls one item from the buffer and books it. ok is false on end of
// stream.
func (w *worker[T]) take() (item T, ok bool) {
	item, err := w.env.Buffer.Get()
	if err != nil {
		return item, false
	}
	w.env.Counters.Consumed.Inc()
	w.res.MatrixTotal++
	w.res.SumTotal += w.env.Summarizer.Sum(item)
	return item, true
}

// combine runs the combine+render step under the print lock and returns the
// state to continue with.
func (w *worker[T]) combine() (state, error) {
	w.env.PrintLock.Lock()
	defer w.env.PrintLock.Unlock()

	product, err := w.env.Combiner.Combine(w.first, w.second)
	switch {
	case err == nil:
		// Held from here on so a failing sink still releases it.
		w.product, w.haveProduct = product, true
		sink := w.env.Sink
		sink.Render(w.first)
		sink.Mark(TimesMarker)
		sink.Render(w.second)
		sink.Mark(EqualsMarker)
		sink.Render(product)

		w.dropProduct()
		w.dropSecond()
		w.dropFirst()
		w.res.MultTotal++
		return needFirst, nil

	case errors.Is(err, types.ErrIncompatible):
		w.dropSecond()
		w.res.Rejected++
		return needSecond, nil
	}
	return done, err
}

// dropFirst forgets item1 before releasing it, so a Release that panics is
// never retried by releaseHeld. dropSecond and dropProduct do the same.
func (w *worker[T]) dropFirst() {
	var zero T
	item := w.first
	w.first, w.haveFirst = zero, false
	w.env.Releaser.Release(item)
}

func (w *worker[T]) dropSecond() {
	var zero T
	item := w.second
	w.second, w.haveSecond = zero, false
	w.env.Releaser.Release(item)
}

func (w *worker[T]) dropProduct() {
	var zero T
	item := w.product
	w.product, w.haveProduct = zero, false
	w.env.Releaser.Release(item)
}

// releaseHeld releases whatever the worker still owns. A Release that
// panics here is recovered so the remaining items are still released.
func (w *worker[T]) releaseHeld() {
	if w.haveProduct {
		w.safely(w.dropProduct)
	}
	if w.haveFirst {
		w.safely(w.dropFirst)
	}
	if w.haveSecond {
		w.safely(w.dropSecond)
	}
}

func (w *worker[T]) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logf(w.env.Logger, "[consumer %02d] release failed: %v", w.id, r)
			if w.res.Err == nil {
				w.res.Err = fmt.Errorf("%w: consumer %d: release: %v", types.ErrWorkerAborted, w.id, r)
			}
		}
	}()
	fn()
}

// Spawn launches n consumers whose IDs start at startID. Each sends its
// result on results before signalling wg.
func Spawn[T any](startID, n int, env Env[T], results chan<- types.WorkerResult, wg *sync.WaitGroup) {
	for i := 0; i < n; i++ {
		id := startID + i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- Run(id, env)
		}()
	}
}

func logf(l *log.Logger, format string, args ...any) {
	if l == nil {
		log.Printf(format, args...)
		return
	}
	l.Printf(format, args...)
}
