package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	c.Set("a", "1")
	got, ok := c.Get("a")
	if !ok || got != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", got, ok)
	}

	c.Set("a", "2")
	if got, _ := c.Get("a"); got != "2" {
		t.Errorf("overwrite: got %q, want 2", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// touch a so b becomes the oldest
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)

	c.Set("a", 1)
	clock.Advance(30 * time.Second)
	c.Set("b", 2)

	clock.Advance(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to be fresh")
	}

	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_NoTTL(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, 0).WithClock(clock.Now)
	c.Set("a", 1)
	clock.Advance(24 * time.Hour)

	if _, ok := c.Get("a"); !ok {
		t.Error("entry without ttl should not expire")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0", n)
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Delete("a")
	c.Delete("nope")
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d, want 0", c.Size())
	}
	c.Set("d", 4)
	if _, ok := c.Get("d"); !ok {
		t.Error("cache should be usable after Purge")
	}
}

func TestJanitor_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	b := NewLRUCache[string](10, time.Hour).WithClock(clock.Now)
	a.Set("x", 1)
	a.Set("y", 2)
	b.Set("z", "z")

	j := NewJanitor(nil)
	j.Register(a)
	j.Register(b)

	clock.Advance(time.Minute)
	if n := j.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if b.Size() != 1 {
		t.Errorf("b.Size() = %d, want 1", b.Size())
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(nil)
	j.Register(NewLRUCache[int](1, time.Millisecond))
	j.Start(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	j.Stop()
	j.Stop()

	idle := NewJanitor(nil)
	idle.Stop()
}
