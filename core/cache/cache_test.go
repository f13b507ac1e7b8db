package cache

import (
	"testing"
	"time"

	"github.com/FocuswithJustin/CedarLink/core/token"
)

func TestGetPut(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 4})

	if _, ok := c.Get("a"); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Put("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}

	c.Put("a", 2)
	v, _ = c.Get("a")
	if v != 2 {
		t.Errorf("Get(a) after update = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestEviction(t *testing.T) {
	var evicted []interface{}
	c := NewLRUCache[string, int](Config{
		MaxSize: 2,
		OnEvict: func(key, _ interface{}) { evicted = append(evicted, key) },
	})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a so b becomes the eviction candidate
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Evictions)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 4, TTL: 10 * time.Millisecond})

	c.Put("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after expiry = %d, want 0", c.Len())
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 4})
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("removed entry should miss")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestStats(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 8})
	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats = %+v, want 2 hits, 1 miss", s)
	}
	if s.Size != 1 || s.MaxSize != 8 {
		t.Errorf("Stats size = %d/%d, want 1/8", s.Size, s.MaxSize)
	}
}

func TestDocumentCache(t *testing.T) {
	dc := NewDocumentCache(DefaultConfig())

	doc := &token.Document{ID: "UGNT-1JN", Book: "1John", Role: token.RoleOriginal}
	dc.Put(doc)

	got, ok := dc.Get("UGNT-1JN")
	if !ok || got.Book != "1John" {
		t.Errorf("Get(UGNT-1JN) = %+v, %v, want the stored document", got, ok)
	}

	dc.Put(nil) // ignored
	if s := dc.Stats(); s.Size != 1 {
		t.Errorf("Size after Put(nil) = %d, want 1", s.Size)
	}

	dc.Remove("UGNT-1JN")
	if _, ok := dc.Get("UGNT-1JN"); ok {
		t.Error("removed document should miss")
	}
}
