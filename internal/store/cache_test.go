package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	dir, err := os.MkdirTemp("", "cache_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	cache, err := NewCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache
}

func TestCache_PutGet(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Put("https://example.com", "get title", "abc123", `{"title":"Home"}`); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload, ok, err := cache.Get("https://example.com", "get title", "abc123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if payload != `{"title":"Home"}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestCache_MissOnDifferentKey(t *testing.T) {
	cache := newTestCache(t)

	_ = cache.Put("https://example.com", "get title", "abc123", `{"title":"Home"}`)

	_, ok, err := cache.Get("https://example.com", "get title", "different")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected cache miss for a different schema hash")
	}
}

func TestCache_PutRefreshes(t *testing.T) {
	cache := newTestCache(t)

	_ = cache.Put("https://example.com", "get title", "abc123", `{"title":"Old"}`)
	if err := cache.Put("https://example.com", "get title", "abc123", `{"title":"New"}`); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	payload, ok, _ := cache.Get("https://example.com", "get title", "abc123")
	if !ok || payload != `{"title":"New"}` {
		t.Errorf("payload = %q, ok = %v", payload, ok)
	}
}

func TestCache_ExpiredRowsAreInvisibleAndPruned(t *testing.T) {
	cache := newTestCache(t)
	cache.TTL = time.Second

	_ = cache.Put("https://example.com", "get title", "abc123", `{"title":"Home"}`)

	// Backdate the row past the TTL instead of sleeping.
	_, err := cache.DB.Exec(`UPDATE extractions SET created_at = datetime('now', '-1 hour')`)
	if err != nil {
		t.Fatal(err)
	}

	_, ok, _ := cache.Get("https://example.com", "get title", "abc123")
	if ok {
		t.Error("expired row should not be returned")
	}

	removed, err := cache.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d rows, want 1", removed)
	}
}
