package ingest

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/benedict2310/slimlytics/internal/metrics"
)

const (
	defaultSiteCacheSize = 1024
	defaultSiteCacheTTL  = time.Minute
)

// SiteLookup reports whether a site exists.
type SiteLookup func(ctx context.Context, siteID string) (bool, error)

// SiteCache remembers positive site lookups so the hot ingestion path does
// not hit SQLite for every beacon. Unknown sites are never cached, so a site
// created a moment ago is accepted immediately.
type SiteCache struct {
	lookup SiteLookup
	known  *expirable.LRU[string, struct{}]
}

func NewSiteCache(lookup SiteLookup, size int, ttl time.Duration) *SiteCache {
	if size <= 0 {
		size = defaultSiteCacheSize
	}
	if ttl <= 0 {
		ttl = defaultSiteCacheTTL
	}
	return &SiteCache{
		lookup: lookup,
		known:  expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (c *SiteCache) Exists(ctx context.Context, siteID string) (bool, error) {
	if _, ok := c.known.Get(siteID); ok {
		metrics.SiteCacheLookups.WithLabelValues("hit").Inc()
		return true, nil
	}
	metrics.SiteCacheLookups.WithLabelValues("miss").Inc()
	ok, err := c.lookup(ctx, siteID)
	if err != nil {
		return false, err
	}
	if ok {
		c.known.Add(siteID, struct{}{})
	}
	return ok, nil
}

// Forget drops a site, typically after it was deleted.
func (c *SiteCache) Forget(siteID string) {
	c.known.Remove(siteID)
}
