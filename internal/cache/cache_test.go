package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/law-makers/shelf/pkg/models"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(1024 * 1024)
	defer c.Close()

	key := Key("https://example.com/product/1", models.DefaultMarker)
	page := &models.PageData{URL: "https://example.com/product/1", HTML: "<html></html>"}
	if err := c.Set(key, page, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.URL != page.URL {
		t.Errorf("expected %s, got %s", page.URL, got.URL)
	}

	if _, ok := c.Get(Key("https://example.com/product/1", "")); ok {
		t.Error("expected miss for a different marker")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(1024 * 1024)
	defer c.Close()

	c.Set("k", &models.PageData{HTML: "x"}, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	body := strings.Repeat("a", 2048)
	// Room for two entries only.
	c := NewMemoryCache(2 * (int64(len(body)) + 1024 + 8))
	defer c.Close()

	c.Set("a", &models.PageData{HTML: body}, time.Minute)
	c.Set("b", &models.PageData{HTML: body}, time.Minute)
	c.Get("a")
	c.Set("c", &models.PageData{HTML: body}, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be cached")
	}
}

func TestMemoryCache_ReplaceKeepsSizeAccurate(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	c.Set("k", &models.PageData{HTML: strings.Repeat("x", 4096)}, time.Minute)
	c.Set("k", &models.PageData{HTML: "small"}, time.Minute)

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Bytes != 5+1024 {
		t.Errorf("expected %d bytes, got %d", 5+1024, stats.Bytes)
	}
}

func TestMemoryCache_StatsAndSweep(t *testing.T) {
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	c.Set("live", &models.PageData{HTML: "a"}, time.Minute)
	c.Set("stale", &models.PageData{HTML: "b"}, time.Millisecond)

	c.Get("live")
	c.Get("missing")

	if dropped := c.dropExpired(time.Now().Add(time.Second)); dropped != 1 {
		t.Errorf("expected 1 expired page swept, got %d", dropped)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 page left, got %d", c.Len())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate() != 50 {
		t.Errorf("expected 50%% hit rate, got %.1f", stats.HitRate())
	}
}

func TestKey(t *testing.T) {
	if got := Key("https://example.com", ""); got != "https://example.com" {
		t.Errorf("unexpected key %q", got)
	}
	if got := Key("https://example.com", "a.itemname[href]"); got != "https://example.com::a.itemname[href]" {
		t.Errorf("unexpected key %q", got)
	}
}
