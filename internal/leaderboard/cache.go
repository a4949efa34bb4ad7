package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when nothing is cached under a key.
var ErrCacheMiss = errors.New("leaderboard cache: miss")

// Page is the cacheable part of a leaderboard: everything except the
// caller's own rank.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// Cache stores leaderboard pages between stats changes.
type Cache interface {
	Get(ctx context.Context, key string) (*Page, error)
	Set(ctx context.Context, key string, p *Page) error
	// Invalidate drops every cached page.
	Invalidate(ctx context.Context) error
}

// NopCache caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Page, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, string, *Page) error   { return nil }
func (NopCache) Invalidate(context.Context) error           { return nil }

// MemoryCache is a process-local cache for single-instance deployments.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	pages map[string]memoryEntry
}

type memoryEntry struct {
	page    Page
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, pages: map[string]memoryEntry{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pages[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if c.ttl > 0 && !c.now().Before(e.expires) {
		delete(c.pages, key)
		return nil, ErrCacheMiss
	}
	p := e.page
	p.Entries = append([]Entry(nil), e.page.Entries...)
	return &p, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, p *Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := Page{Entries: append([]Entry(nil), p.Entries...), Total: p.Total}
	c.pages[key] = memoryEntry{page: stored, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.pages)
	return nil
}

const (
	redisPrefix  = "synapse:leaderboard:"
	redisKeysSet = redisPrefix + "keys"
)

// RedisCache shares cached pages between instances. Every page key is
// tracked in a set so Invalidate can drop them without a keyspace scan.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://...) and
// checks the connection.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Page, error) {
	data, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached leaderboard: %w", err)
	}
	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached leaderboard: %w", err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, p *Page) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisPrefix+key, data, c.ttl)
		pipe.SAdd(ctx, redisKeysSet, redisPrefix+key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache leaderboard: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, redisKeysSet).Result()
	if err != nil {
		return fmt.Errorf("list cached leaderboards: %w", err)
	}
	keys = append(keys, redisKeysSet)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate leaderboards: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
