package secrets

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 128
	DefaultCacheTTL  = time.Minute
)

// Cached wraps a remote [Store] (e.g. Thrippy or etcd) with an expiring
// LRU cache, so that webhook bursts don't turn into lookup bursts.
// Errors are never cached.
type Cached struct {
	store Store
	cache *expirable.LRU[string, Values]
}

// NewCached wraps the given store. Non-positive arguments select defaults.
func NewCached(s Store, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Cached{
		store: s,
		cache: expirable.NewLRU[string, Values](size, nil, ttl),
	}
}

func (c *Cached) Values(ctx context.Context, platform string) (Values, error) {
	if v, ok := c.cache.Get(platform); ok {
		return v, nil
	}

	v, err := c.store.Values(ctx, platform)
	if err != nil {
		return nil, err
	}

	c.cache.Add(platform, v)
	return v, nil
}

// Purge drops all cached entries, e.g. after a known secret rotation.
func (c *Cached) Purge() {
	c.cache.Purge()
}
