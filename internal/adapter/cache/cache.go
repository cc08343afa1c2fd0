// Package cache holds finished forecasts in an in-memory LRU with expiry.
package cache

import (
	"time"

	"github.com/bluele/gcache"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
)

// Cache is a size-bounded forecast cache. Entries expire ttl after being set;
// a ttl of zero keeps them until evicted.
type Cache struct {
	lru gcache.Cache
}

// New creates a cache holding at most size forecasts.
func New(size int, ttl time.Duration) *Cache {
	return NewWithClock(size, ttl, clockwork.NewRealClock())
}

// NewWithClock is New with an injectable clock for expiry tests.
func NewWithClock(size int, ttl time.Duration, clock clockwork.Clock) *Cache {
	b := gcache.New(max(size, 1)).LRU().Clock(clock)
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &Cache{lru: b.Build()}
}

func (c *Cache) Get(key pipeline.CacheKey) (domain.ForecastResult, bool) {
	v, err := c.lru.Get(key)
	if err != nil {
		return domain.ForecastResult{}, false
	}
	r, ok := v.(domain.ForecastResult)
	return r, ok
}

func (c *Cache) Set(key pipeline.CacheKey, result domain.ForecastResult) {
	_ = c.lru.Set(key, result) // only fails for loader-backed caches
}

// Invalidate drops every entry for stationKey, across radii and versions.
func (c *Cache) Invalidate(stationKey string) {
	for _, k := range c.lru.Keys(false) {
		if ck, ok := k.(pipeline.CacheKey); ok && ck.StationKey == stationKey {
			c.lru.Remove(k)
		}
	}
}

func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of unexpired entries.
func (c *Cache) Len() int {
	return c.lru.Len(true)
}
