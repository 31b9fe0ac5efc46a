package memory

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of writes between two sweeps of idle keys
const sweepEvery = 1024

type series struct {
	hits      []time.Time
	expiresAt time.Time // last hit plus its retention
}

// CounterStore keeps sliding-window hit timestamps per key in process memory.
// Counts are local to the node. Keys whose last hit left its retention window
// are dropped by a sweep that runs every sweepEvery writes.
type CounterStore struct {
	mu     sync.Mutex
	keys   map[string]*series
	writes int
}

// NewCounterStore returns an empty counter store
func NewCounterStore() *CounterStore {
	return &CounterStore{keys: make(map[string]*series)}
}

// Hit records one event at the given instant and forgets events older than retention
func (c *CounterStore) Hit(_ context.Context, key string, at time.Time, retention time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.keys[key]
	if !ok {
		s = &series{}
		c.keys[key] = s
	}
	cutoff := at.Add(-retention)
	kept := s.hits[:0]
	for _, t := range s.hits {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	s.hits = append(kept, at)
	if exp := at.Add(retention); exp.After(s.expiresAt) {
		s.expiresAt = exp
	}

	c.writes++
	if c.writes >= sweepEvery {
		c.writes = 0
		c.sweep(at)
	}
	return nil
}

// Count returns how many events were recorded at or after since
func (c *CounterStore) Count(_ context.Context, key string, since time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.keys[key]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, t := range s.hits {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}

// Prune drops every key idle past its retention at now and reports how many
func (c *CounterStore) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(now)
}

func (c *CounterStore) sweep(now time.Time) int {
	removed := 0
	for key, s := range c.keys {
		if s.expiresAt.Before(now) {
			delete(c.keys, key)
			removed++
		}
	}
	return removed
}
