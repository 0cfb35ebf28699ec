package backlog

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Counter is a threadsafe monotonic counter. It only ever grows.
// The padding keeps two Counters laid out side by side on separate cache
// lines.
type Counter struct {
	_ cpu.CacheLinePad
	n atomic.Int64
	_ cpu.CacheLinePad
}

func (c *Counter) Inc() {
	c.n.Add(1)
}

func (c *Counter) Load() int64 {
	return c.n.Load()
}

// Reserve increments the counter only if it is below limit and reports
// whether it did. Concurrent callers can never push it past limit.
func (c *Counter) Reserve(limit int64) bool {
	for {
		cur := c.n.Load()
		if cur >= limit {
			return false
		}
		if c.n.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Counters tracks run progress on both sides of the buffer. Producers
// touch only Produced and consumers only Consumed.
type Counters struct {
	Produced Counter
	Consumed Counter
}
