package mapbox

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
)

// CachedGeocoder wraps any domain.Geocoder with an in-memory LRU cache keyed
// by the normalized query text. Events in one run share a handful of
// neighborhoods, so most fallback queries repeat.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, []domain.Coordinates]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	if maxEntries < 1 {
		maxEntries = 1
	}
	cache, _ := lru.New[string, []domain.Coordinates](maxEntries) // only errors on size <= 0
	return &CachedGeocoder{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) ([]domain.Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so "not found" can resolve on a later run.
	if len(result) > 0 {
		c.cache.Add(key, result)
	}
	return result, nil
}

// Len returns the number of cached queries.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
