package cache

import (
	"testing"
	"time"

	"github.com/vetoguard/veto/internal/domain/bytecode"
)

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	cur := start
	now := func() time.Time { return cur }
	advance := func(d time.Duration) { cur = cur.Add(d) }
	return now, advance
}

func TestCache_SetAndGet(t *testing.T) {
	now, _ := fakeClock(time.Unix(0, 0))
	c := New(10, time.Minute, now)
	prog := &bytecode.Program{}
	key := Key{ToolName: "read_file", RuleSetHash: "abc"}

	c.Set(key, prog)
	entry, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if entry.Policy != prog {
		t.Fatal("expected the same policy pointer back")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now, advance := fakeClock(time.Unix(0, 0))
	c := New(10, time.Minute, now)
	key := Key{ToolName: "read_file", RuleSetHash: "abc"}
	c.Set(key, &bytecode.Program{})

	advance(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected a miss after the TTL elapses")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	now, _ := fakeClock(time.Unix(0, 0))
	c := New(2, time.Hour, now)
	k1 := Key{ToolName: "a", RuleSetHash: "h"}
	k2 := Key{ToolName: "b", RuleSetHash: "h"}
	k3 := Key{ToolName: "c", RuleSetHash: "h"}

	c.Set(k1, &bytecode.Program{})
	c.Set(k2, &bytecode.Program{})
	c.Get(k1) // bump k1 to front, making k2 the LRU victim
	c.Set(k3, &bytecode.Program{})

	if _, ok := c.Get(k2); ok {
		t.Fatal("expected k2 (least recently used) to be evicted")
	}
	if _, ok := c.Get(k1); !ok {
		t.Fatal("expected k1 to survive eviction")
	}
}

func TestCache_LastKnownGoodSurvivesTTLExpiry(t *testing.T) {
	now, advance := fakeClock(time.Unix(0, 0))
	c := New(10, time.Minute, now)
	key := Key{ToolName: "read_file", RuleSetHash: "abc"}
	prog := &bytecode.Program{}
	c.Set(key, prog)

	advance(time.Hour)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected hot entry to have expired")
	}
	lkg, ok := c.LastKnownGood(key)
	if !ok {
		t.Fatal("expected LKG entry to survive hot-entry expiry")
	}
	if lkg.Policy != prog {
		t.Fatal("expected LKG to hold the same compiled policy")
	}
}

func TestCache_LastKnownGoodSurvivesLRUEviction(t *testing.T) {
	now, _ := fakeClock(time.Unix(0, 0))
	c := New(1, time.Hour, now)
	k1 := Key{ToolName: "a", RuleSetHash: "h"}
	k2 := Key{ToolName: "b", RuleSetHash: "h"}
	prog1 := &bytecode.Program{}

	c.Set(k1, prog1)
	c.Set(k2, &bytecode.Program{}) // evicts k1's hot entry

	if _, ok := c.Get(k1); ok {
		t.Fatal("expected k1's hot entry to be evicted")
	}
	if lkg, ok := c.LastKnownGood(k1); !ok || lkg.Policy != prog1 {
		t.Fatal("expected k1's LKG entry to survive LRU eviction")
	}
}

func TestCloudCache_FreshStaleExpiredTransitions(t *testing.T) {
	now, advance := fakeClock(time.Unix(0, 0))
	c := NewCloud(time.Minute, 5*time.Minute, now)
	key := Key{ToolName: "read_file", RuleSetHash: "abc"}
	c.Set(key, &bytecode.Program{})

	if _, fresh := c.Get(key); fresh != Fresh {
		t.Fatalf("expected Fresh immediately after Set, got %v", fresh)
	}
	advance(2 * time.Minute)
	if _, fresh := c.Get(key); fresh != Stale {
		t.Fatalf("expected Stale within [fresh,max), got %v", fresh)
	}
	advance(10 * time.Minute)
	if _, fresh := c.Get(key); fresh != Expired {
		t.Fatalf("expected Expired past max, got %v", fresh)
	}
}

func TestCloudCache_AtMostOneInFlightRefresh(t *testing.T) {
	now, _ := fakeClock(time.Unix(0, 0))
	c := NewCloud(time.Minute, 5*time.Minute, now)
	key := Key{ToolName: "read_file", RuleSetHash: "abc"}

	if !c.ShouldRefresh(key) {
		t.Fatal("expected the first ShouldRefresh to start a refresh")
	}
	if c.ShouldRefresh(key) {
		t.Fatal("expected a second concurrent ShouldRefresh to be refused")
	}
	c.RefreshDone(key)
	if !c.ShouldRefresh(key) {
		t.Fatal("expected ShouldRefresh to succeed again after RefreshDone")
	}
}
