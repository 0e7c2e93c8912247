package push

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jballard86/frigate-push-gateway/internal/buffer"
	"github.com/jballard86/frigate-push-gateway/internal/metrics"
)

// ImageTTL is how long a cached preview image stays usable. Later phases of
// the same event reuse it instead of refetching; anything older is treated
// as absent and evicted on read.
const ImageTTL = 72 * time.Hour

const defaultCacheEntries = 256

type imageEntry struct {
	data     []byte
	cachedAt time.Time
}

// ImageCache is a process-wide in-memory cache of preview images keyed by
// event id. Two independent bounds apply: a byte budget enforced LRU-first,
// and the ImageTTL checked on read. All operations serialize on one lock;
// the cache is shared across concurrent phase-handler goroutines.
type ImageCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, imageEntry]
	maxBytes int64
	curBytes int64
	now      func() time.Time
}

// NewImageCache creates a cache bounded to maxBytes of image data.
func NewImageCache(maxBytes int64) *ImageCache {
	c := &ImageCache{maxBytes: maxBytes, now: time.Now}
	// Eviction callback keeps the byte count honest for LRU evictions,
	// Remove and Add-replace alike.
	c.lru, _ = lru.NewWithEvict[string, imageEntry](defaultCacheEntries, func(_ string, e imageEntry) {
		c.curBytes -= int64(len(e.data))
	})
	return c
}

// Get returns the cached image for eventID, or nil if missing or older than
// ImageTTL. Expired entries are evicted.
func (c *ImageCache) Get(eventID string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(eventID)
	if !ok {
		metrics.ImageCacheMissesTotal.Inc()
		return nil
	}
	if c.now().Sub(e.cachedAt) > ImageTTL {
		c.lru.Remove(eventID)
		metrics.ImageCacheMissesTotal.Inc()
		return nil
	}
	metrics.ImageCacheHitsTotal.Inc()
	return e.data
}

// Put stores an image for eventID, overwriting unconditionally and stamping
// the current time. Oldest entries are dropped until the byte budget holds.
func (c *ImageCache) Put(eventID string, data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Remove first so the eviction callback releases the replaced entry's
	// bytes; Add on an existing key updates in place without firing it.
	c.lru.Remove(eventID)
	c.lru.Add(eventID, imageEntry{data: data, cachedAt: c.now()})
	c.curBytes += int64(len(data))
	for c.curBytes > c.maxBytes && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Evict removes the entry for eventID. Call when the event is deleted.
func (c *ImageCache) Evict(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(eventID)
}

// EvictByEventPath removes the entry for the event behind an API path such
// as "events/1772256011_69405f11". The cache is keyed by the prefixed id;
// a path segment that already carries the prefix maps to the same key.
func (c *ImageCache) EvictByEventPath(eventPath string) {
	folder := eventPath
	if i := strings.LastIndex(eventPath, "/"); i >= 0 {
		folder = eventPath[i+1:]
	}
	if folder == "" {
		return
	}
	c.Evict(buffer.CandidatePrefix + strings.TrimPrefix(folder, buffer.CandidatePrefix))
}

// Len reports the current entry count.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
