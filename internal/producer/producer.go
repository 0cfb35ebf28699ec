package producer

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

// Env is what every producer of a run shares.
type Env[T any] struct {
	RunID    uuid.UUID
	Buffer   *buffer.Buffer[T]
	Counters *backlog.Counters
	Target   int64 // total items all producers together may create

	Generator  types.Generator[T]
	Releaser   types.Releaser[T]
	Summarizer types.Summarizer[T]

	Logger *log.Logger
}

type state int

const (
	checking state = iota
	producing
	done
)

// Run executes one producer loop until the shared target is reached or the
// buffer refuses an item.
func Run[T any](id int, env Env[T]) (res types.WorkerResult) {
	res = types.WorkerResult{RunID: env.RunID, WorkerID: id, Role: types.RoleProducer}

	var (
		item T
		held bool
	)
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: producer %d: %v", types.ErrWorkerAborted, id, r)
		}
		if held {
			env.Releaser.Release(item)
		}
		logf(env.Logger, "[producer %02d] done: produced=%d sum=%d", id, res.MatrixTotal, res.SumTotal)
	}()

	st := checking
	for st != done {
		switch st {
		case checking:
			// Reserve before work: the slot is claimed before the item
			// exists, so the total never exceeds Target.
			if !env.Counters.Produced.Reserve(env.Target) {
				st = done
				continue
			}
			st = producing

		case producing:
			var err error
			item, err = env.Generator.Generate()
			if err == nil && types.IsNil(item) {
				err = errors.New("no item")
			}
			if err != nil {
				res.Err = fmt.Errorf("%w: producer %d: generate: %w", types.ErrWorkerAborted, id, err)
				st = done
				continue
			}
			held = true
			// Summed before Put: once queued, a consumer may release it.
			sum := env.Summarizer.Sum(item)

			if err := env.Buffer.Put(item); err != nil {
				if !errors.Is(err, types.ErrClosed) {
					res.Err = fmt.Errorf("%w: producer %d: put: %w", types.ErrWorkerAborted, id, err)
				}
				st = done
				continue
			}
			// the buffer owns it now
			held = false
			var zero T
			item = zero

			res.SumTotal += sum
			res.MatrixTotal++
			st = checking
		}
	}
	return res
}

// Spawn launches n producers whose IDs start at startID. Each sends its
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
