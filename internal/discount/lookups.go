package discount

import (
	"context"

	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
)

// CachedLookups serves incentive tiers from the cache and delegates the
// remaining lookups.
type CachedLookups struct {
	Lookups
	cache *cache.Store
}

// NewCachedLookups wraps next with tier caching.
func NewCachedLookups(next Lookups, store *cache.Store) *CachedLookups {
	return &CachedLookups{Lookups: next, cache: store}
}

// ActiveTiers returns the cached active tier list.
func (c *CachedLookups) ActiveTiers(ctx context.Context) ([]Tier, error) {
	var tiers []Tier
	err := c.cache.FetchJSON(ctx, CacheKeyIncentiveSchemes, &tiers, func(ctx context.Context) (any, error) {
		return c.Lookups.ActiveTiers(ctx)
	})
	return tiers, err
}
