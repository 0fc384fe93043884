package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/swingrun/internal/domain/market"
)

// DefaultBarKeyPrefix namespaces cached bar histories
const DefaultBarKeyPrefix = "swingrun:bars:"

// MemoryBarCache keeps bar histories in a TTLCache
type MemoryBarCache struct {
	cache *TTLCache[market.Series]
	ttl   time.Duration
}

// NewMemoryBarCache creates an in-process bar cache
func NewMemoryBarCache(maxSymbols int, ttl time.Duration) *MemoryBarCache {
	return &MemoryBarCache{cache: NewTTLCache[market.Series](maxSymbols), ttl: ttl}
}

func (m *MemoryBarCache) Get(_ context.Context, symbol string) (market.Series, bool, error) {
	bars, ok := m.cache.Get(symbol)
	return bars, ok, nil
}

func (m *MemoryBarCache) Set(_ context.Context, symbol string, bars market.Series) error {
	m.cache.Set(symbol, bars, m.ttl)
	return nil
}

// Stats exposes the underlying cache counters
func (m *MemoryBarCache) Stats() Stats { return m.cache.Stats() }

// redisClient is the subset of *redis.Client the bar cache uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBarCache shares bar histories across processes through Redis
type RedisBarCache struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisBarCache creates a Redis-backed bar cache
func NewRedisBarCache(client redisClient, prefix string, ttl time.Duration) *RedisBarCache {
	if prefix == "" {
		prefix = DefaultBarKeyPrefix
	}
	return &RedisBarCache{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis opens a v9 client and verifies it with PING
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

func (r *RedisBarCache) key(symbol string) string { return r.prefix + symbol }

// Get returns a cached history; a missing key is a miss, not an error
func (r *RedisBarCache) Get(ctx context.Context, symbol string) (market.Series, bool, error) {
	raw, err := r.client.Get(ctx, r.key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var bars market.Series
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, false, fmt.Errorf("unmarshal bars: %w", err)
	}
	return bars, true, nil
}

// Set stores a history with the configured TTL
func (r *RedisBarCache) Set(ctx context.Context, symbol string, bars market.Series) error {
	raw, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	if err := r.client.Set(ctx, r.key(symbol), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete drops a cached history
func (r *RedisBarCache) Delete(ctx context.Context, symbol string) error {
	if err := r.client.Del(ctx, r.key(symbol)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
