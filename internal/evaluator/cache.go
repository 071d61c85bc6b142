package evaluator

import (
	"sort"
	"sync"
	"time"
)

// evictionFraction is the share of keys removed in one sweep once the store
// grows past its maximum, oldest creation time first.
const evictionFraction = 0.1

type cacheEntry struct {
	result    Result
	normWord  string
	keySuffix string
	createdAt time.Time
	hits      int
}

// resultCache memoizes evaluation results by a normalized request signature.
// Lookups by similarity install the probed key as an alias of the matched
// entry, so several keys may point at the same entry. All methods are safe
// for concurrent use.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
}

func newResultCache(ttl time.Duration, maxEntries int) *resultCache {
	return &resultCache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// get returns the non-expired result stored under the exact key, counting the
// hit. Expired entries are deleted on read.
func (c *resultCache) get(key string, now time.Time) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.expired(entry, now) {
		delete(c.entries, key)
		return Result{}, false
	}
	entry.hits++
	return entry.result, true
}

// similar scans non-expired entries sharing the same context, difficulty, and
// page component and returns the best edit-distance match for the requested
// word, provided its ratio meets the threshold. On a hit, the probed key is
// stored as an alias of the matched entry so the next identical request takes
// the exact path.
func (c *resultCache) similar(key, normWord, suffix string, threshold float64, now time.Time) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *cacheEntry
	bestRatio := 0.0
	for _, entry := range c.entries {
		if c.expired(entry, now) {
			continue
		}
		if entry.keySuffix != suffix || entry.normWord == normWord {
			continue
		}
		ratio := similarityRatio(normWord, entry.normWord)
		if ratio > bestRatio {
			bestRatio = ratio
			best = entry
		}
	}
	if best == nil || bestRatio < threshold {
		return Result{}, false
	}

	best.hits++
	c.entries[key] = best
	return best.result, true
}

// put stores a fresh result under key and returns how many keys were evicted
// to stay within capacity.
func (c *resultCache) put(key, normWord, suffix string, result Result, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		result:    result,
		normWord:  normWord,
		keySuffix: suffix,
		createdAt: now,
	}
	if len(c.entries) <= c.maxEntries {
		return 0
	}
	return c.evictOldest()
}

// evictOldest removes the oldest ~10% of keys by creation time. Callers must
// hold the lock.
func (c *resultCache) evictOldest() int {
	count := int(float64(len(c.entries)) * evictionFraction)
	if count < 1 {
		count = 1
	}

	type keyedEntry struct {
		key       string
		createdAt time.Time
	}
	keys := make([]keyedEntry, 0, len(c.entries))
	for key, entry := range c.entries {
		keys = append(keys, keyedEntry{key: key, createdAt: entry.createdAt})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].createdAt.Before(keys[j].createdAt)
	})

	if count > len(keys) {
		count = len(keys)
	}
	for i := 0; i < count; i++ {
		delete(c.entries, keys[i].key)
	}
	return count
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *resultCache) expired(entry *cacheEntry, now time.Time) bool {
	return now.Sub(entry.createdAt) > c.ttl
}
