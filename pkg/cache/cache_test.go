package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, size int, ttl time.Duration) (*Cache[string, string], *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New[string, string](size, ttl, WithClock(clk.Now)), clk
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	c.Set("get:/scenes/start", "scene")
	got, ok := c.Get("get:/scenes/start")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "scene" {
		t.Errorf("got %q, want scene", got)
	}

	if _, ok := c.Get("get:/scenes/other"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, 3, time.Hour)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}
	c.Set("k3", "v")

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestReadRefreshesRecency(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a becomes most recent
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive after being read")
	}
}

func TestWriteRefreshesRecency(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1b")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, _ := c.Get("a"); v != "1b" {
		t.Errorf("a = %q, want 1b", v)
	}
}

func TestUpdateAtCapacityDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("b", "3")

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("updating an existing key must not evict")
	}
}

func TestTTLExpiration(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute)
	c.Set("k", "v")

	clk.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit within ttl")
	}

	clk.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss once ttl elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed, Len = %d", c.Len())
	}
}

func TestExpiryIsLazy(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute)
	c.Set("k", "v")
	clk.Advance(time.Hour)

	if c.Len() != 1 {
		t.Errorf("stale entry should occupy its slot until touched, Len = %d", c.Len())
	}
}

func TestClearAndStats(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	c.Get("c")
	c.Get("a")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.Evicted != 1 {
		t.Errorf("evicted = %d, want 1", stats.Evicted)
	}
	if stats.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", stats.Capacity)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestDefaults(t *testing.T) {
	c := New[string, int](0, 0)
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL = %v, want %v", c.TTL(), DefaultTTL)
	}
	if c.Stats().Capacity != DefaultMaxEntries {
		t.Errorf("capacity = %d", c.Stats().Capacity)
	}
}
