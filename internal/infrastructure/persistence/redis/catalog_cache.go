package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/pkg/circuitbreaker"
	"github.com/stridehub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// Read-through cache in front of a badge.Catalog. Badge definitions change
// rarely and are read on every evaluation. Cache failures never fail a read;
// they fall through to the backing catalog. After repeated failures a circuit
// breaker skips Redis until a probe succeeds again.
// ══════════════════════════════════════════════════════════════════════════════

// BackingCatalog is the catalog behind the cache.
type BackingCatalog interface {
	badge.Catalog
	badge.Editor
}

// CatalogCache implements badge.Catalog and badge.Editor.
type CatalogCache struct {
	cache   *Cache
	backing BackingCatalog
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewCatalogCache wraps backing with a cache. ttl <= 0 uses TTLCatalog.
func NewCatalogCache(cache *Cache, backing BackingCatalog, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("catalog_cache"))
	return &CatalogCache{
		cache:   cache,
		backing: backing,
		ttl:     ttl,
		breaker: circuitbreaker.CacheBreaker("catalog-cache", func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		log: log,
	}
}

// load reads key into dest through the breaker. A miss is not a failure.
func (c *CatalogCache) load(ctx context.Context, key string, dest any) bool {
	var hit bool
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("catalog cache read failed", logger.String("key", key), logger.Err(err))
	}
	return hit
}

func (c *CatalogCache) store(ctx context.Context, key string, value any) {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, value, c.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.log.Warn("catalog cache write failed", logger.String("key", key), logger.Err(err))
	}
}

// Breaker exposes the cache's circuit breaker.
func (c *CatalogCache) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *CatalogCache) activeKey(sport string) string {
	return c.cache.Key(PrefixCatalog, "active:", strings.ToLower(sport))
}

func (c *CatalogCache) badgeKey(id string) string {
	return c.cache.Key(PrefixCatalog, "badge:", id)
}

// ListActive implements badge.Catalog.
func (c *CatalogCache) ListActive(ctx context.Context, sport string) ([]badge.Badge, error) {
	key := c.activeKey(sport)

	var cached []badge.Badge
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	badges, err := c.backing.ListActive(ctx, sport)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []badge.Badge{}
	}
	c.store(ctx, key, badges)
	return badges, nil
}

// Get implements badge.Catalog.
func (c *CatalogCache) Get(ctx context.Context, id string) (*badge.Badge, error) {
	key := c.badgeKey(id)

	var cached badge.Badge
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	b, err := c.backing.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, b)
	return b, nil
}

// Save implements badge.Editor and drops every cached catalog read.
func (c *CatalogCache) Save(ctx context.Context, b badge.Badge) error {
	if err := c.backing.Save(ctx, b); err != nil {
		return err
	}
	c.invalidateAfterEdit(ctx, b.ID)
	return nil
}

// SetActive implements badge.Editor and drops every cached catalog read.
func (c *CatalogCache) SetActive(ctx context.Context, id string, active bool) error {
	if err := c.backing.SetActive(ctx, id, active); err != nil {
		return err
	}
	c.invalidateAfterEdit(ctx, id)
	return nil
}

// SaveCategory implements badge.Editor. Categories are not cached.
func (c *CatalogCache) SaveCategory(ctx context.Context, cat badge.Category) error {
	return c.backing.SaveCategory(ctx, cat)
}

// invalidateAfterEdit runs once the edit has committed, so a failure here
// must not be reported as a failed edit. Stale entries expire with the TTL.
func (c *CatalogCache) invalidateAfterEdit(ctx context.Context, badgeID string) {
	if err := c.Invalidate(ctx); err != nil {
		c.log.Warn("catalog cache invalidation failed; entries expire with ttl",
			logger.BadgeID(badgeID),
			logger.Duration("ttl", c.ttl),
			logger.Err(err),
		)
	}
}

// Invalidate drops every cached catalog read. It bypasses the breaker so an
// edit is never left behind stale entries.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, c.cache.Key(PrefixCatalog, "*"))
}
