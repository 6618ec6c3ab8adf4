// Package cache implements the per-tenant trade-loop cache (§4.7, C7):
// fingerprint-keyed entries with query-key and wallet secondary indices
// (invalidation is per wallet; there is no NFT index), TTL + LRU
// eviction, and at-most-one-build coalescing.
//
// Coalescing is the one place the rest of the retrieval pack supplies a
// primitive the teacher never needed: gallery-so-go-gallery imports
// golang.org/x/sync, whose singleflight.Group is exactly the "per-key
// waiter list guarded by the cache mutex" the design notes call for
// (§9), and hashicorp/golang-lru/v2 supplies the bounded eviction store
// in place of a hand-rolled LRU list.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rawblock/barter-engine/pkg/models"
)

// DefaultCapacity and DefaultTTL are the §4.7 defaults.
const (
	DefaultCapacity = 10000
	DefaultTTL      = 5 * time.Minute
)

// entry is one cached query result: a single loop with the set of
// query/invalidation keys that reference it.
type entry struct {
	loop         models.Loop
	insertedAt   time.Time
	expiresAt    time.Time
	graphVersion uint64
	seeds        map[string]bool
}

// Cache is one tenant's loop cache. It is internally synchronized; it
// does not participate in the tenant graph's reader-writer lock (§5
// Shared resource policy: "the loop cache has its own mutex independent
// of the tenant graph lock").
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*entry            // fingerprint -> entry
	byQuery  map[string]map[string]bool   // queryKey -> set of fingerprints
	byWallet map[string]map[string]bool   // wallet id -> set of fingerprints
	recency  *lru.Cache[string, struct{}] // fingerprint -> recency tracker for eviction

	group singleflight.Group
}

// New builds a Cache with the given size cap and TTL. A capacity of zero
// or less and a TTL of zero fall back to the §4.7 defaults; a negative
// TTL is kept, so entries are already expired when inserted.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*entry),
		byQuery:  make(map[string]map[string]bool),
		byWallet: make(map[string]map[string]bool),
	}
	// The lru.Cache's own eviction callback removes the backing entry so
	// capacity is enforced as entries are inserted, not only at Sweep.
	recency, _ := lru.NewWithEvict[string, struct{}](capacity, func(fingerprint string, _ struct{}) {
		c.removeLocked(fingerprint)
	})
	c.recency = recency
	return c
}

// DirtySince reports the most recent dirty timestamp for a wallet.
type DirtySince func(wallet string) time.Time

// Get returns the cached loops for queryKey, or (nil, false) on a miss.
// Entries referencing a wallet dirtied after they were inserted are
// invariant-5 stale and are dropped (and evicted) rather than returned.
func (c *Cache) Get(queryKey string, dirtySince DirtySince) ([]models.Loop, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fps, ok := c.byQuery[queryKey]
	if !ok || len(fps) == 0 {
		return nil, false
	}

	var loops []models.Loop
	for fp := range fps {
		e, ok := c.entries[fp]
		if !ok {
			continue
		}
		stale := false
		if dirtySince != nil {
			for _, w := range e.loop.Participants {
				if t := dirtySince(w); !t.IsZero() && t.After(e.insertedAt) {
					stale = true
					break
				}
			}
		}
		if stale {
			c.removeLocked(fp)
			continue
		}
		c.recency.Get(fp) // touch for LRU recency
		loops = append(loops, e.loop)
	}
	if len(loops) == 0 {
		return nil, false
	}
	return loops, true
}

// Put upserts loop under fingerprint, associating it with queryKey (for
// future Get lookups) and every participant wallet (for Invalidate).
func (c *Cache) Put(queryKey string, loop models.Loop, graphVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(queryKey, loop, graphVersion)
}

// PutAll is a convenience wrapper for inserting a whole discovery result
// under one query key.
func (c *Cache) PutAll(queryKey string, loops []models.Loop, graphVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, loop := range loops {
		c.putLocked(queryKey, loop, graphVersion)
	}
}

func (c *Cache) putLocked(queryKey string, loop models.Loop, graphVersion uint64) {
	now := time.Now()
	fp := loop.Fingerprint

	e, ok := c.entries[fp]
	if !ok {
		e = &entry{seeds: make(map[string]bool)}
		c.entries[fp] = e
	}
	e.loop = loop
	e.insertedAt = now
	e.expiresAt = now.Add(c.ttl)
	e.graphVersion = graphVersion
	e.seeds[queryKey] = true

	if c.byQuery[queryKey] == nil {
		c.byQuery[queryKey] = make(map[string]bool)
	}
	c.byQuery[queryKey][fp] = true

	for _, w := range loop.Participants {
		if c.byWallet[w] == nil {
			c.byWallet[w] = make(map[string]bool)
		}
		c.byWallet[w][fp] = true
	}

	c.recency.Add(fp, struct{}{})
}

// Invalidate removes every cache entry touching wallet (§4.7
// invalidate), e.g. because the mutation router just marked it dirty.
func (c *Cache) Invalidate(wallet string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for fp := range c.byWallet[wallet] {
		c.recency.Remove(fp) // triggers removeLocked via the evict callback
		c.removeLocked(fp)
	}
	delete(c.byWallet, wallet)
}

// removeLocked deletes fp from every index. Callers must hold c.mu.
// Note it must not itself call c.recency.Remove when invoked from the
// lru eviction callback (that would recurse); callers outside that path
// should prefer Invalidate/Sweep which call recency.Remove explicitly.
func (c *Cache) removeLocked(fp string) {
	e, ok := c.entries[fp]
	if !ok {
		return
	}
	delete(c.entries, fp)
	for queryKey := range e.seeds {
		delete(c.byQuery[queryKey], fp)
		if len(c.byQuery[queryKey]) == 0 {
			delete(c.byQuery, queryKey)
		}
	}
	for _, w := range e.loop.Participants {
		delete(c.byWallet[w], fp)
		if len(c.byWallet[w]) == 0 {
			delete(c.byWallet, w)
		}
	}
}

// Sweep evicts every expired entry. It is idempotent (§4.7 sweep); LRU
// capacity eviction happens continuously via the recency cache's
// evict callback, so Sweep only needs to handle TTL expiry.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []string
	for fp, e := range c.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, fp)
		}
	}
	for _, fp := range expired {
		c.recency.Remove(fp) // triggers removeLocked via the evict callback
	}
	return len(expired)
}

// TTL returns the cache's configured entry lifetime, so callers can
// stamp a loop's expiresAt before it is ever inserted.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Len reports the number of cached fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Coalesce runs build() for queryKey, or waits on an in-flight call for
// the same key (§4.7 at-most-one-build guarantee, §9 design notes).
// shared reports whether this caller received another goroutine's result.
func (c *Cache) Coalesce(queryKey string, build func() (models.DiscoveryResult, error)) (models.DiscoveryResult, error, bool) {
	v, err, shared := c.group.Do(queryKey, func() (interface{}, error) {
		return build()
	})
	if err != nil {
		return models.DiscoveryResult{}, err, shared
	}
	return v.(models.DiscoveryResult), nil, shared
}
