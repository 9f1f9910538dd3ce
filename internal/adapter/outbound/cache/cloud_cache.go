package cache

import (
	"sync"
	"time"

	"github.com/vetoguard/veto/internal/domain/bytecode"
)

// cloudEntry carries the two-cutoff freshness window spec §4.8 describes
// for the cloud-policy variant: staleAt = cachedAt+fresh, expiredAt =
// cachedAt+max.
type cloudEntry struct {
	Entry
	staleAt   time.Time
	expiredAt time.Time
}

// CloudCache is the stale-while-revalidate variant of Cache: within
// [staleAt, expiredAt) it serves the stale entry immediately AND triggers
// at most one background refresh per key, rather than blocking the caller
// on a synchronous recompile/refetch.
type CloudCache struct {
	mu    sync.Mutex
	fresh time.Duration
	max   time.Duration
	now   func() time.Time

	entries   map[uint64]*cloudEntry
	lkg       map[uint64]Entry
	inflight  map[uint64]bool
}

// NewCloud constructs a CloudCache with the given fresh/max windows.
func NewCloud(fresh, max time.Duration, nowFn func() time.Time) *CloudCache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &CloudCache{
		fresh:    fresh,
		max:      max,
		now:      nowFn,
		entries:  make(map[uint64]*cloudEntry),
		lkg:      make(map[uint64]Entry),
		inflight: make(map[uint64]bool),
	}
}

// Freshness describes how Get should be interpreted by the caller.
type Freshness int

const (
	// Miss means there is no usable entry (nor cached-but-expired); the
	// caller must synchronously fetch/compile.
	Miss Freshness = iota
	// Fresh means the entry is within its fresh window — use directly, no
	// refresh needed.
	Fresh
	// Stale means the entry is past fresh but before expired — use it, and
	// the caller should kick off (at most one) background refresh.
	Stale
	// Expired means the entry is past its max window — treat as a miss for
	// serving, but LastKnownGood remains available as a fail-closed fallback.
	Expired
)

// Get returns the cached policy (if any) and its freshness classification.
func (c *CloudCache) Get(key Key) (Entry, Freshness) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp := key.fingerprint()
	ce, ok := c.entries[fp]
	if !ok {
		return Entry{}, Miss
	}
	now := c.now()
	switch {
	case now.Before(ce.staleAt):
		ce.LastUsed = now
		ce.HitCount++
		return ce.Entry, Fresh
	case now.Before(ce.expiredAt):
		ce.LastUsed = now
		ce.HitCount++
		return ce.Entry, Stale
	default:
		return ce.Entry, Expired
	}
}

// ShouldRefresh reports whether the caller should start a background
// refresh for key, and marks one in-flight if so — at-most-one-in-flight
// per key (spec §5).
func (c *CloudCache) ShouldRefresh(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp := key.fingerprint()
	if c.inflight[fp] {
		return false
	}
	c.inflight[fp] = true
	return true
}

// RefreshDone clears the in-flight marker for key, whether the refresh
// succeeded or failed.
func (c *CloudCache) RefreshDone(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key.fingerprint())
}

// Set stores a freshly fetched/compiled policy and updates the LKG copy.
func (c *CloudCache) Set(key Key, policy *bytecode.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp := key.fingerprint()
	now := c.now()
	entry := Entry{Policy: policy, CachedAt: now, LastUsed: now}
	c.entries[fp] = &cloudEntry{Entry: entry, staleAt: now.Add(c.fresh), expiredAt: now.Add(c.max)}
	c.lkg[fp] = entry
}

// LastKnownGood returns the most recent successfully-fetched policy for
// key, regardless of freshness.
func (c *CloudCache) LastKnownGood(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lkg[key.fingerprint()]
	return e, ok
}
