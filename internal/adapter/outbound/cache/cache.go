// Package cache implements the policy cache (spec §4.8): an LRU with a
// freshness TTL, backed by a second never-evicted "last-known-good"
// namespace so a failed recompile or sync can fall back to the last
// compiled policy that worked.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vetoguard/veto/internal/domain/bytecode"
)

// Key identifies one cached compiled policy: the tool name and the rule
// set's content hash, matching the GLOSSARY's cache-key fingerprint.
type Key struct {
	ToolName    string
	RuleSetHash string
}

// fingerprint hashes a Key to a fixed-width uint64 via xxhash — fast,
// non-cryptographic, appropriate for an in-memory map key rather than a
// security boundary (cryptographic integrity is Ed25519's job, C2/C13).
func (k Key) fingerprint() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(k.ToolName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(k.RuleSetHash)
	return h.Sum64()
}

// Entry is one cached compiled policy plus its bookkeeping (spec §3).
type Entry struct {
	Policy   *bytecode.Program
	CachedAt time.Time
	LastUsed time.Time
	HitCount int64
}

type node struct {
	key   Key
	fp    uint64
	entry Entry
}

// Cache is the LRU+TTL+LKG policy cache. Zero value is not usable; use New.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	order   *list.List // front = most recently used
	byFP    map[uint64]*list.Element
	lkg     map[uint64]Entry // last-known-good, never evicted/expired
	lkgKeys map[uint64]Key
}

// New constructs a Cache with the given LRU capacity and TTL. nowFn lets
// tests inject a fake clock; pass nil to use time.Now.
func New(maxEntries int, ttl time.Duration, nowFn func() time.Time) *Cache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        nowFn,
		order:      list.New(),
		byFP:       make(map[uint64]*list.Element),
		lkg:        make(map[uint64]Entry),
		lkgKeys:    make(map[uint64]Key),
	}
}

// Get returns the hot entry for key if present and not expired, bumping its
// recency and hit count. Stale entries are removed on access (spec §4.8).
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp := key.fingerprint()
	el, ok := c.byFP[fp]
	if !ok {
		return Entry{}, false
	}
	n := el.Value.(*node)
	if c.ttl > 0 && c.now().Sub(n.entry.CachedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.byFP, fp)
		return Entry{}, false
	}
	n.entry.LastUsed = c.now()
	n.entry.HitCount++
	c.order.MoveToFront(el)
	return n.entry, true
}

// Has reports presence without affecting recency or removing stale entries.
func (c *Cache) Has(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byFP[key.fingerprint()]
	return ok
}

// Set writes both the hot entry and its LKG copy, evicting the
// least-recently-used hot entry if the cache is at capacity. The LKG copy
// is a snapshot: the compiled policy at the moment of a successful
// compile/sync, regardless of later hot-entry eviction or expiry.
func (c *Cache) Set(key Key, policy *bytecode.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp := key.fingerprint()
	now := c.now()
	entry := Entry{Policy: policy, CachedAt: now, LastUsed: now}

	if el, ok := c.byFP[fp]; ok {
		el.Value.(*node).entry = entry
		c.order.MoveToFront(el)
	} else {
		n := &node{key: key, fp: fp, entry: entry}
		el := c.order.PushFront(n)
		c.byFP[fp] = el
		if c.order.Len() > c.maxEntries {
			c.evictOldest()
		}
	}

	c.lkg[fp] = entry
	c.lkgKeys[fp] = key
}

func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	n := back.Value.(*node)
	c.order.Remove(back)
	delete(c.byFP, n.fp)
}

// Delete removes both the hot and LKG entries for key.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp := key.fingerprint()
	if el, ok := c.byFP[fp]; ok {
		c.order.Remove(el)
		delete(c.byFP, fp)
	}
	delete(c.lkg, fp)
	delete(c.lkgKeys, fp)
}

// Clear empties every hot and LKG entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.byFP = make(map[uint64]*list.Element)
	c.lkg = make(map[uint64]Entry)
	c.lkgKeys = make(map[uint64]Key)
}

// LastKnownGood returns the most recent successfully-compiled policy for
// key, ignoring TTL and LRU eviction entirely — the fail-closed-to-known
// fallback used when a recompile or sync fails (spec §3's "never evicted
// by LRU and never expires").
func (c *Cache) LastKnownGood(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lkg[key.fingerprint()]
	return e, ok
}
