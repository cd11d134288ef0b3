package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)

	c.Set(ctx, "k", "v")
	if got, ok := c.Get(ctx, "k"); !ok || got != "v" {
		t.Fatalf("expected hit, got %q ok=%v", got, ok)
	}

	clock.advance(59 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should still be fresh before the TTL")
	}

	clock.advance(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry should expire exactly at the TTL")
	}
	if c.Size(ctx) != 0 {
		t.Fatalf("expired entry should be removed on read, size=%d", c.Size(ctx))
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](2, time.Hour)

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Get(ctx, "a") // a becomes most recent
	c.Set(ctx, "c", 3)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Fatalf("%s should still be cached", k)
		}
	}
}

func TestLRUCacheOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](0, time.Hour) // clamps to one entry

	c.Set(ctx, "a", 1)
	c.Set(ctx, "a", 2)
	if got, _ := c.Get(ctx, "a"); got != 2 {
		t.Fatalf("overwrite: got %d", got)
	}
	c.Delete(ctx, "a")
	c.Delete(ctx, "missing")
	if c.Size(ctx) != 0 {
		t.Fatalf("size after delete: %d", c.Size(ctx))
	}
}

func TestManagerCleansExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second).WithClock(clock.now)
	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	m := NewManager()
	m.Register(c)
	m.Register("not a cache")
	if m.Registered() != 1 {
		t.Fatalf("expected one registered cleaner, got %d", m.Registered())
	}

	if n := m.CleanNow(); n != 0 {
		t.Fatalf("nothing should expire yet, removed %d", n)
	}
	clock.advance(2 * time.Second)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
