package mapreduce

import (
	"sync"
	"sync/atomic"
)

// Counter names maintained by the scheduler.
const (
	CounterRecordsIn            = "records.in"
	CounterRecordsSkipped       = "records.skipped"
	CounterMapOutputRecords     = "map.output.records"
	CounterMapAttemptsFailed    = "map.attempts.failed"
	CounterReduceGroups         = "reduce.groups"
	CounterReduceOutputRecords  = "reduce.output.records"
	CounterReduceAttemptsFailed = "reduce.attempts.failed"
)

// Counters is a set of named atomic counters.
type Counters struct {
	mu sync.RWMutex
	m  map[string]*atomic.Int64
}

// NewCounters returns an empty counter set.
func NewCounters() *Counters {
	return &Counters{m: make(map[string]*atomic.Int64)}
}

func (c *Counters) counter(name string) *atomic.Int64 {
	c.mu.RLock()
	v, ok := c.m[name]
	c.mu.RUnlock()
	if ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok = c.m[name]; !ok {
		v = &atomic.Int64{}
		c.m[name] = v
	}
	return v
}

// Add adds delta to the named counter.
func (c *Counters) Add(name string, delta int64) {
	if delta == 0 {
		return
	}
	c.counter(name).Add(delta)
}

// Get returns the value of the named counter.
func (c *Counters) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.m[name]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot copies every counter.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v.Load()
	}
	return out
}

// local accumulates an attempt's counters until the attempt commits.
type local map[string]int64

func (l local) commitTo(c *Counters) {
	for name, delta := range l {
		c.Add(name, delta)
	}
}
