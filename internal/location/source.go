package location

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source lists the distinct locations currently present in the catalog
type Source interface {
	KnownLocations(ctx context.Context) ([]string, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]string, error)

func (f SourceFunc) KnownLocations(ctx context.Context) ([]string, error) { return f(ctx) }

// CachedSource keeps the location list for a short TTL and collapses
// concurrent refreshes into one catalog read. A TTL of zero reads through.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	locs    []string
	fetched time.Time
}

func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedSource) KnownLocations(ctx context.Context) ([]string, error) {
	if c.ttl <= 0 {
		return c.src.KnownLocations(ctx)
	}

	c.mu.RLock()
	if c.locs != nil && c.now().Sub(c.fetched) < c.ttl {
		locs := c.locs
		c.mu.RUnlock()
		return locs, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("locations", func() (any, error) {
		locs, err := c.src.KnownLocations(ctx)
		if err != nil {
			return nil, err
		}
		if locs == nil {
			locs = []string{}
		}
		c.mu.Lock()
		c.locs, c.fetched = locs, c.now()
		c.mu.Unlock()
		return locs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops the cached list so the next call reads the catalog
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.locs = nil
	c.mu.Unlock()
}
