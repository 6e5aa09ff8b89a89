package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](4, time.Hour, WithClock(clk.now))

	c.Set("latest", "quote")
	if v, ok := c.Get("latest"); !ok || v != "quote" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	clk.advance(59 * time.Minute)
	if _, ok := c.Get("latest"); !ok {
		t.Fatalf("entry expired too early")
	}
	clk.advance(2 * time.Minute)
	if _, ok := c.Get("latest"); ok {
		t.Fatalf("entry should have expired")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read, size=%d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("recently read entry should survive")
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Fatalf("overwrite failed, got %d", v)
	}
	c.Delete("a")
	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}
}

func TestManagerSweep(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute, WithClock(clk.now))
	c.Set("x", 1)
	c.Set("y", 2)
	clk.advance(2 * time.Minute)
	c.Set("z", 3)

	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Size() != 0 {
		t.Fatalf("size after clear = %d", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("cleared entry still readable")
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("get after clear = %d, %v", v, ok)
	}
}
