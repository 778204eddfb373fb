package auth

import (
	"sync"
	"time"

	"github.com/auctionhub/auction-core/internal/domain"
)

// TokenCache is a bounded, TTL-bound, process-local map from opaque bearer
// token to a resolved Principal. It exists to keep the bid-submission hot
// path free of repeated JWT signature verification and datastore lookups.
// Contents are advisory: a miss falls through cleanly to re-validation, so
// there is no cross-process invalidation to worry about.
type TokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]cacheEntry
}

type cacheEntry struct {
	principal domain.Principal
	expiresAt time.Time
}

// NewTokenCache creates a token cache with the given per-entry TTL and
// maximum entry count.
func NewTokenCache(ttl time.Duration, maxSize int) *TokenCache {
	return &TokenCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached principal for token, evicting it in place if it
// has expired. The bool is false on both miss and expiry.
func (c *TokenCache) Get(token string) (domain.Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return domain.Principal{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, token)
		return domain.Principal{}, false
	}
	return entry.principal, true
}

// Set stores a principal for token, refreshing its TTL. If the cache is at
// capacity, the entry with the earliest expiration is evicted first, a
// cheap approximation of LRU that is exact under uniform TTLs.
func (c *TokenCache) Set(token string, principal domain.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[token]; !exists && len(c.entries) >= c.maxSize {
		c.evictEarliestLocked()
	}
	c.entries[token] = cacheEntry{
		principal: principal,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *TokenCache) evictEarliestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		first     = true
	)
	for k, e := range c.entries {
		if first || e.expiresAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Len reports the current number of cached entries, including any not yet
// lazily evicted. Used by tests only.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
