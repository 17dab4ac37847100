// Package cache keeps fetched pages in memory so a product linked more than
// once from a listing is fetched a single time.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/pkg/models"
)

// DefaultTTL applies when Set is called without a positive TTL.
const DefaultTTL = 5 * time.Minute

// DefaultMaxBytes bounds a cache created without an explicit size.
const DefaultMaxBytes = 100 << 20

// sweepInterval is how often expired pages are dropped in the background.
const sweepInterval = time.Minute

// Cache is what the fetchers need from a page cache.
type Cache interface {
	Get(key string) (*models.PageData, bool)
	Set(key string, page *models.PageData, ttl time.Duration) error
	Close()
}

// Key identifies a page by the URL and the readiness marker it was confirmed with.
// A page confirmed for one marker says nothing about another.
func Key(url, marker string) string {
	if marker == "" {
		return url
	}
	return url + "::" + marker
}

type entry struct {
	key     string
	page    *models.PageData
	size    int64
	expires time.Time
}

// Stats is a snapshot of cache usage.
type Stats struct {
	Entries  int
	Bytes    int64
	MaxBytes int64
	Hits     uint64
	Misses   uint64
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// MemoryCache is a size-bounded LRU of pages with per-entry expiry.
type MemoryCache struct {
	mu       sync.Mutex
	index    map[string]*list.Element
	order    *list.List // front is most recently used
	bytes    int64
	maxBytes int64

	hits   atomic.Uint64
	misses atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a cache holding at most maxBytes of page data and
// starts its expiry sweeper. Call Close to stop the sweeper.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c := &MemoryCache{
		index:    make(map[string]*list.Element),
		order:    list.New(),
		maxBytes: maxBytes,
		stop:     make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Get returns the page stored under key if it has not expired.
func (c *MemoryCache) Get(key string) (*models.PageData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expires) {
		c.remove(el)
		c.misses.Add(1)
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits.Add(1)
	log.Debug().Str("key", key).Msg("Page cache hit")
	return e.page, true
}

// Set stores page under key, evicting least recently used pages until it fits.
func (c *MemoryCache) Set(key string, page *models.PageData, ttl time.Duration) error {
	if page == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &entry{key: key, page: page, size: pageSize(page), expires: time.Now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
	for c.bytes+e.size > c.maxBytes && c.order.Len() > 0 {
		oldest := c.order.Back()
		log.Debug().Str("key", oldest.Value.(*entry).key).Msg("Evicting page from cache")
		c.remove(oldest)
	}

	c.index[key] = c.order.PushFront(e)
	c.bytes += e.size

	log.Debug().
		Str("key", key).
		Int64("size_bytes", e.size).
		Dur("ttl", ttl).
		Msg("Page cached")
	return nil
}

// Len returns the number of cached pages, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns current usage counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:  c.order.Len(),
		Bytes:    c.bytes,
		MaxBytes: c.maxBytes,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

// Close stops the expiry sweeper. It is safe to call more than once.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// remove must be called with c.mu held.
func (c *MemoryCache) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.index, e.key)
	c.bytes -= e.size
}

func (c *MemoryCache) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.dropExpired(now)
		}
	}
}

func (c *MemoryCache) dropExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*entry).expires) {
			c.remove(el)
			dropped++
		}
		el = next
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("Expired pages swept")
	}
	return dropped
}

// pageSize approximates the memory held by page, with 1KB for the struct and headers.
func pageSize(page *models.PageData) int64 {
	n := len(page.HTML) + len(page.Title) + len(page.URL)
	for k, v := range page.Headers {
		n += len(k) + len(v)
	}
	return int64(n) + 1024
}
