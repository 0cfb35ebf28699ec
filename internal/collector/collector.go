package collector

import (
	"errors"
	"log"
	"sync"

	"github.com/SinaHkz/pcmatrix/pkg/types"
)

// Summary merges every WorkerResult of a run.
type Summary struct {
	Produced types.Totals
	Consumed types.Totals
	Workers  []types.WorkerResult // in arrival order
	Err      error                // errors.Join of every worker error
}

// Collector gathers worker results until the results channel is closed.
type Collector struct {
	done    chan struct{}
	summary Summary
}

// Start drains results in a goroutine, logging each result as it arrives.
// It signals through wg once the channel is closed and drained.
func Start(results <-chan types.WorkerResult, wg *sync.WaitGroup, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.Default()
	}
	c := &Collector{done: make(chan struct{})}

	wg.Add(1)
	go func() {
		defer func() {
			close(c.done)
			wg.Done()
		}()

		var errs []error
		for res := range results {
			if res.Err != nil {
				logger.Printf("✗ %s %02d stopped after %d items, ERROR: %v",
					res.Role, res.WorkerID, res.MatrixTotal, res.Err)
				errs = append(errs, res.Err)
			} else {
				logger.Printf("✓ %s %02d finished with %d items",
					res.Role, res.WorkerID, res.MatrixTotal)
			}
			c.summary.add(res)
		}
		c.summary.Err = errors.Join(errs...)
	}()
	return c
}

// Summary blocks until every result has been collected.
func (c *Collector) Summary() Summary {
	<-c.done
	return c.summary
}

func (s *Summary) add(r types.WorkerResult) {
	s.Workers = append(s.Workers, r)
	switch r.Role {
	case types.RoleProducer:
		s.Produced.Add(r)
	case types.RoleConsumer:
		s.Consumed.Add(r)
	}
}
