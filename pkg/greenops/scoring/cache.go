package scoring

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// responseCache memoizes scoring responses for identical feature batches.
// Readings are immutable, so re-scoring the same batch within the TTL only
// spends deployment quota for the same answer.
type responseCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uint64]cacheEntry
	stop    chan struct{}
}

type cacheEntry struct {
	response *scoreResponse
	expires  time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	c := &responseCache{
		ttl:     ttl,
		entries: make(map[uint64]cacheEntry),
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *responseCache) get(key uint64) (*scoreResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.response, true
}

func (c *responseCache) put(key uint64, resp *scoreResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		response: resp,
		expires:  time.Now().Add(c.ttl),
	}
}

func (c *responseCache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			removed := 0
			for key, entry := range c.entries {
				if now.After(entry.expires) {
					delete(c.entries, key)
					removed++
				}
			}
			size := len(c.entries)
			c.mu.Unlock()
			if removed > 0 {
				klog.V(4).InfoS("Pruned scoring cache", "removed", removed, "remaining", size)
			}
		}
	}
}

func (c *responseCache) close() {
	close(c.stop)
}

// cacheKey hashes a request's fields and vectors
func cacheKey(fields []string, vectors [][]float64) uint64 {
	h := fnv.New64a()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	for _, vector := range vectors {
		for _, v := range vector {
			fmt.Fprintf(h, "%x,", v)
		}
		h.Write([]byte{0})
	}
	return h.Sum64()
}
