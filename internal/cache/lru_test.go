package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[[]string](2, time.Minute)

	c.Set(ctx, "2025-01", []string{"a"})
	got, ok := c.Get(ctx, "2025-01")
	if !ok || len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected get: %v %v", got, ok)
	}
	if _, ok := c.Get(ctx, "2025-02"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](2, time.Minute)

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Get(ctx, "a")
	c.Set(ctx, "c", 3)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("expected a to survive")
	}
	if c.Size(ctx) != 2 {
		t.Fatalf("expected size 2, got %d", c.Size(ctx))
	}
}

func TestWeightedLRUCacheEvictsByItemCount(t *testing.T) {
	ctx := context.Background()
	c := NewWeightedLRUCache[[]string](100, 10, time.Minute, ItemCountWeight[string])

	c.Set(ctx, "2025-01", []string{"a", "b"})        // weight 3
	c.Set(ctx, "2025-02", []string{"c"})             // weight 2
	c.Set(ctx, "2025", []string{"a", "b", "c", "d"}) // weight 5
	if c.Weight() != 10 || c.Size(ctx) != 3 {
		t.Fatalf("weight=%d size=%d, want 10 and 3", c.Weight(), c.Size(ctx))
	}

	// Touch January so February is the oldest entry
	c.Get(ctx, "2025-01")
	c.Set(ctx, "2025-03", []string{"e"})
	if _, ok := c.Get(ctx, "2025-02"); ok {
		t.Fatal("expected the least recently used month to be evicted")
	}
	if c.Weight() != 10 {
		t.Fatalf("weight=%d, want 10", c.Weight())
	}

	// A year heavier than the whole budget is not cached and evicts nothing
	c.Set(ctx, "2024", make([]string, 20))
	if _, ok := c.Get(ctx, "2024"); ok {
		t.Fatal("oversized entry should not be cached")
	}
	if c.Size(ctx) != 3 {
		t.Fatalf("size=%d, want 3", c.Size(ctx))
	}

	// Replacing an entry releases its previous weight
	c.Set(ctx, "2025", []string{})
	if c.Weight() != 6 {
		t.Fatalf("weight after replace=%d, want 6", c.Weight())
	}
	c.Delete(ctx, "2025-01", "2025-03")
	if c.Weight() != 1 {
		t.Fatalf("weight after delete=%d, want 1", c.Weight())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected a to be expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if c.Size(ctx) != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size(ctx))
	}
}

func TestLRUCacheDeleteMany(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Minute)
	c.Set(ctx, "2025", 1)
	c.Set(ctx, "2025-01", 2)
	c.Set(ctx, "2025-02", 3)

	c.Delete(ctx, "2025", "2025-01", "missing")

	if c.Size(ctx) != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Size(ctx))
	}
	if _, ok := c.Get(ctx, "2025-02"); !ok {
		t.Fatal("expected 2025-02 to remain")
	}
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	var c Cache[int] = Noop[int]{}
	c.Set(ctx, "a", 1)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("noop cache should never hit")
	}
}

func TestManagerStop(t *testing.T) {
	m := NewManager(nil)
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set(context.Background(), "a", 1)
	m.Register(c)
	m.StartCleanup(time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size(context.Background()) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if c.Size(context.Background()) != 0 {
		t.Fatal("expected cleanup to remove expired entry")
	}
}
