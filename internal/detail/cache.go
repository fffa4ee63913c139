package detail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalsfoundry/sites-fouilles-map/internal/logging"
	"github.com/signalsfoundry/sites-fouilles-map/internal/observability"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// DefaultCacheTTL is how long a detail record is served from cache.
const DefaultCacheTTL = time.Hour

// Cache stores detail records by site id.
type Cache interface {
	Get(ctx context.Context, id model.FeatureID) (*model.SiteDetails, bool, error)
	Set(ctx context.Context, id model.FeatureID, details *model.SiteDetails) error
}

// RedisCache keeps JSON-encoded records in Redis.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps rdb. A non-positive ttl takes DefaultCacheTTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "sitemap:details:"}
}

func (c *RedisCache) key(id model.FeatureID) string {
	return c.prefix + id.String()
}

// Get implements Cache. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, id model.FeatureID) (*model.SiteDetails, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var details model.SiteDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, false, fmt.Errorf("decode cached details: %w", err)
	}
	return &details, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, id model.FeatureID, details *model.SiteDetails) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MemoryCache is a process-local Cache without expiry.
type MemoryCache struct {
	mu      sync.Mutex
	records map[model.FeatureID]model.SiteDetails
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[model.FeatureID]model.SiteDetails)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, id model.FeatureID) (*model.SiteDetails, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.records[id]
	if !ok {
		return nil, false, nil
	}
	return &d, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, id model.FeatureID, details *model.SiteDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = *details
	return nil
}

// Cached serves records from a Cache and falls back to the wrapped Fetcher.
// Cache failures are logged and never fail the fetch.
type Cached struct {
	next    Fetcher
	cache   Cache
	log     logging.Logger
	metrics *observability.DetailCollector
}

var _ Fetcher = (*Cached)(nil)

// NewCached wraps next with cache.
func NewCached(next Fetcher, cache Cache, log logging.Logger, metrics *observability.DetailCollector) *Cached {
	if log == nil {
		log = logging.Noop()
	}
	return &Cached{next: next, cache: cache, log: log, metrics: metrics}
}

// Fetch implements Fetcher.
func (c *Cached) Fetch(ctx context.Context, id model.FeatureID) (*model.SiteDetails, error) {
	details, hit, err := c.cache.Get(ctx, id)
	if err != nil {
		c.metrics.IncCacheError()
		c.log.Warn(ctx, "detail cache read failed", logging.Feature(id), logging.Err(err))
	}
	c.metrics.IncCacheLookup(hit)
	if hit {
		return details, nil
	}

	details, err = c.next.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, id, details); err != nil {
		c.metrics.IncCacheError()
		c.log.Warn(ctx, "detail cache write failed", logging.Feature(id), logging.Err(err))
	}
	return details, nil
}
