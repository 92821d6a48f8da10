package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/docsearch/pkg/observability"
)

// Cache stores responses by query key. Keys embed the catalog version, so a
// reload never serves results from the previous catalog. Implementations
// must be safe for concurrent use and return copies the caller may modify.
type Cache interface {
	Get(ctx context.Context, key string) (*Response, bool)
	Set(ctx context.Context, key string, resp *Response)
}

func cloneResponse(resp *Response) *Response {
	cp := *resp
	cp.Results = slices.Clone(resp.Results)
	return &cp
}

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *Response]
}

// NewMemoryCache creates a cache holding at most size responses for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, *Response](size, nil, ttl),
	}
}

// Get returns a copy of the cached response for key.
func (c *MemoryCache) Get(_ context.Context, key string) (*Response, bool) {
	resp, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneResponse(resp), true
}

// Set stores a copy of resp under key.
func (c *MemoryCache) Set(_ context.Context, key string, resp *Response) {
	c.lru.Add(key, cloneResponse(resp))
}

// Len returns the number of cached responses.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares responses between instances through Redis. Errors are
// logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *observability.Logger
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *observability.Logger) *RedisCache {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RedisCache{
		client: client,
		prefix: "docsearch:query:",
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get fetches and decodes the response stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) (*Response, bool) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("result cache read failed")
		}
		return nil, false
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.WithError(err).Warn("result cache entry corrupt")
		return nil, false
	}
	return &resp, true
}

// Set encodes resp and stores it under key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.WithError(err).Warn("result cache encode failed")
		return
	}
	if err := c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("result cache write failed")
	}
}
