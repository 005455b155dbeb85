package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds the ephemeral in-flight marks. A live mark for (user, server)
// means a request is still in flight or very recently finished; marks expire
// on their own after the TTL so a crash can never leave a user locked out.
type Cache interface {
	// Mark records that a request for the key was just queued.
	Mark(ctx context.Context, userID, server string) error

	// Live reports whether an unexpired mark exists for the key.
	Live(ctx context.Context, userID, server string) (bool, error)

	// Clear removes the mark ahead of its natural expiry.
	Clear(ctx context.Context, userID, server string) error

	Close() error
}

// CacheType selects the in-flight cache driver.
type CacheType string

const (
	CacheMemory CacheType = "memory"
	CacheRedis  CacheType = "redis"
)

var (
	ErrInvalidCacheConfig = errors.New("invalid cache configuration")
	ErrInvalidCacheType   = errors.New("invalid cache type")
)

const defaultMarkTTL = 60 * time.Second

// CacheOption configures a cache built by NewCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// WithRedisClient sets the Redis client for the redis driver.
func WithRedisClient(client *redis.Client) CacheOption {
	return func(c *cacheConfig) { c.redisClient = client }
}

// WithTTL overrides the 60s mark lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) { c.ttl = ttl }
}

// NewCache builds an in-flight cache. The memory driver is per-process; the
// redis driver lets multiple relay instances share one set of marks.
func NewCache(cacheType CacheType, opts ...CacheOption) (Cache, error) {
	cfg := &cacheConfig{ttl: defaultMarkTTL}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultMarkTTL
	}

	switch cacheType {
	case CacheMemory:
		return &memoryCache{
			marks: make(map[string]time.Time),
			ttl:   cfg.ttl,
			now:   time.Now,
		}, nil
	case CacheRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidCacheConfig
		}
		return &redisCache{client: cfg.redisClient, ttl: cfg.ttl}, nil
	default:
		return nil, ErrInvalidCacheType
	}
}

func markKey(userID, server string) string {
	return userID + "_" + server
}

// memoryCache keeps marks in a map of insertion timestamps. Expired entries
// are dropped lazily on read and swept on write.
type memoryCache struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

func (c *memoryCache) Mark(ctx context.Context, userID, server string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, at := range c.marks {
		if now.Sub(at) > c.ttl {
			delete(c.marks, k)
		}
	}
	c.marks[markKey(userID, server)] = now
	return nil
}

func (c *memoryCache) Live(ctx context.Context, userID, server string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.marks[markKey(userID, server)]
	if !ok {
		return false, nil
	}
	if c.now().Sub(at) > c.ttl {
		delete(c.marks, markKey(userID, server))
		return false, nil
	}
	return true, nil
}

func (c *memoryCache) Clear(ctx context.Context, userID, server string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.marks, markKey(userID, server))
	return nil
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = nil
	return nil
}

// redisCache stores each mark as a key with a TTL; Redis handles expiry.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "inflight:"

func (c *redisCache) Mark(ctx context.Context, userID, server string) error {
	return c.client.Set(ctx, redisKeyPrefix+markKey(userID, server), time.Now().Unix(), c.ttl).Err()
}

func (c *redisCache) Live(ctx context.Context, userID, server string) (bool, error) {
	_, err := c.client.Get(ctx, redisKeyPrefix+markKey(userID, server)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *redisCache) Clear(ctx context.Context, userID, server string) error {
	return c.client.Del(ctx, redisKeyPrefix+markKey(userID, server)).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
