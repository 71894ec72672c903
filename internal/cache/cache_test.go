package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestReportCacheGetSet(t *testing.T) {
	c := NewReportCache[string](4, time.Minute)

	if _, ok := c.Get("dash/2025-06"); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set("dash/2025-06", "payload")
	got, ok := c.Get("dash/2025-06")
	if !ok || got != "payload" {
		t.Fatalf("got %q, ok=%v", got, ok)
	}
}

func TestReportCacheEvictsOldest(t *testing.T) {
	c := NewReportCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the eviction candidate.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive, it was used last")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestReportCacheTTL(t *testing.T) {
	c := NewReportCache[int](4, 10*time.Millisecond)
	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
}

func TestReportCacheInvalidate(t *testing.T) {
	c := NewReportCache[int](8, time.Minute)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	c.Invalidate()

	for i := 0; i < 4; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Fatalf("k%d survived invalidation", i)
		}
	}

	// New writes after invalidation are live again.
	c.Set("fresh", 9)
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("post-invalidation write missed")
	}
}

func TestReportCacheSweep(t *testing.T) {
	c := NewReportCache[int](8, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate()
	c.Set("c", 3)

	if n := c.Sweep(); n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Fatalf("len after sweep = %d", c.Len())
	}
}
