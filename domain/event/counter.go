package event

import "sync"

// Counter accumulates per-type event totals. Safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	totals map[Type]uint64
}

func NewCounter() *Counter {
	return &Counter{totals: make(map[Type]uint64)}
}

func (c *Counter) Increment(t Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[t]++
}

func (c *Counter) Value(t Type) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[t]
}

// Snapshot returns a copy of all totals, keyed by event type.
func (c *Counter) Snapshot() map[Type]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Type]uint64, len(c.totals))
	for k, v := range c.totals {
		out[k] = v
	}
	return out
}
