// Package ratelimit implements the keyed fixed-window counter shared by every
// admission scope.
//
// The window is a hard boundary, not a sliding one: a client can land up to
// 2x the limit across a boundary. That burst is accepted.
package ratelimit

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const shardCount = 32

// Decision is the outcome of a single Increment
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window reopens
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// entry is the per-key window state
type entry struct {
	count         int
	windowResetAt time.Time
	blockedUntil  time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Counter is a sharded, in-memory fixed-window counter.
// Each key is guarded by the mutex of the shard it hashes to.
type Counter struct {
	shards [shardCount]*shard
	now    func() time.Time
	// next shard the incremental sweep will visit
	sweepMu   sync.Mutex
	sweepNext int
}

// NewCounter creates an empty Counter. A nil clock defaults to time.Now.
func NewCounter(clock func() time.Time) *Counter {
	if clock == nil {
		clock = time.Now
	}
	c := &Counter{now: clock}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return c
}

func (c *Counter) shardFor(key string) *shard {
	return c.shards[xxh3.HashString(key)%shardCount]
}

// Increment records a hit for key and reports whether it fits within limit
// hits per window.
func (c *Counter) Increment(key string, limit int, window time.Duration) Decision {
	return c.IncrementWithBlock(key, limit, window, 0)
}

// IncrementWithBlock is Increment with block escalation: once the limit is
// exceeded the key stays denied until now+blockFor, even if the window rolls
// over first. blockFor <= 0 disables escalation.
func (c *Counter) IncrementWithBlock(key string, limit int, window, blockFor time.Duration) Decision {
	now := c.now()
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && now.Before(e.blockedUntil) {
		e.count++
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: e.blockedUntil}
	}

	if !ok || !now.Before(e.windowResetAt) {
		e = &entry{count: 1, windowResetAt: now.Add(window)}
		s.entries[key] = e
		return Decision{Allowed: limit >= 1, Limit: limit, Remaining: max(0, limit-1), ResetAt: e.windowResetAt}
	}

	e.count++
	d := Decision{
		Allowed:   e.count <= limit,
		Limit:     limit,
		Remaining: max(0, limit-e.count),
		ResetAt:   e.windowResetAt,
	}
	if !d.Allowed && blockFor > 0 {
		e.blockedUntil = now.Add(blockFor)
		d.ResetAt = e.blockedUntil
	}
	return d
}

// Peek reports the current state of key without counting a hit.
// ok is false when the key has no live window.
func (c *Counter) Peek(key string, limit int) (d Decision, ok bool) {
	now := c.now()
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key]
	if !found {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, false
	}
	if now.Before(e.blockedUntil) {
		return Decision{Allowed: false, Limit: limit, ResetAt: e.blockedUntil}, true
	}
	if !now.Before(e.windowResetAt) {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, false
	}
	return Decision{
		Allowed:   e.count < limit,
		Limit:     limit,
		Remaining: max(0, limit-e.count),
		ResetAt:   e.windowResetAt,
	}, true
}

// Reset forgets key entirely
func (c *Counter) Reset(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep removes expired entries from a single shard and advances to the
// next one, so no lock is held across the whole keyspace. It returns the
// number of entries removed.
func (c *Counter) Sweep() int {
	c.sweepMu.Lock()
	idx := c.sweepNext
	c.sweepNext = (c.sweepNext + 1) % shardCount
	c.sweepMu.Unlock()

	return c.sweepShard(c.shards[idx])
}

// SweepAll visits every shard once, locking one shard at a time
func (c *Counter) SweepAll() int {
	removed := 0
	for _, s := range c.shards {
		removed += c.sweepShard(s)
	}
	return removed
}

func (c *Counter) sweepShard(s *shard) int {
	now := c.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.windowResetAt) && !now.Before(e.blockedUntil) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not
func (c *Counter) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
