package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/metrics"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

// DefaultKeyPrefix namespaces every key the engine writes.
const DefaultKeyPrefix = "buybox"

// ResultCache stores computed Buy Box results in a shared KV store under
// <prefix>:result:<productID>. It never decides when a result is stale beyond
// its TTL; collaborators that mutate offers or overrides call Invalidate.
type ResultCache struct {
	store   cache.Store
	prefix  string
	nowFunc func() time.Time
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithResultCacheNowFunc overrides the time function for testing.
func WithResultCacheNowFunc(f func() time.Time) ResultCacheOption {
	return func(c *ResultCache) {
		c.nowFunc = f
	}
}

// NewResultCache creates a result cache over s.
func NewResultCache(s cache.Store, prefix string, opts ...ResultCacheOption) *ResultCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	c := &ResultCache{
		store:   s,
		prefix:  prefix,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) key(productID string) string {
	return cache.Key(c.prefix, "result", productID)
}

// Get returns the cached result for productID, or nil on a miss. A payload
// whose CacheExpiresAt has passed is a miss even if the store returned it.
func (c *ResultCache) Get(ctx context.Context, productID string) (*domain.Result, error) {
	data, err := c.store.Get(ctx, c.key(productID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached result for %s: %w", productID, err)
	}

	var r domain.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding cached result for %s: %w", productID, err)
	}
	if r.CacheExpiresAt != nil && !c.nowFunc().Before(*r.CacheExpiresAt) {
		return nil, nil
	}
	return &r, nil
}

// Set stores r for productID with the given ttl.
func (c *ResultCache) Set(ctx context.Context, productID string, r *domain.Result, ttl time.Duration) error {
	if r == nil {
		return errors.New("caching nil result")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result for %s: %w", productID, err)
	}
	if err := c.store.Set(ctx, c.key(productID), data, ttl); err != nil {
		return fmt.Errorf("writing cached result for %s: %w", productID, err)
	}
	return nil
}

// Invalidate removes the cached result for productID.
func (c *ResultCache) Invalidate(ctx context.Context, productID string) error {
	if err := c.store.Delete(ctx, c.key(productID)); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("invalidating cached result for %s: %w", productID, err)
	}
	metrics.CacheInvalidationsTotal.Inc()
	return nil
}
