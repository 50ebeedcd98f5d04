package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TLISentinel/internal/model"
)

// SnapshotCache stores recent snapshots by symbol.
type SnapshotCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, symbol string) (*model.MarketSnapshot, error)
	Set(ctx context.Context, snap *model.MarketSnapshot, ttl time.Duration) error
}

// RedisCache is a SnapshotCache backed by Redis, storing JSON values.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, prefix: "tli:snapshot:"}, nil
}

func (r *RedisCache) key(symbol string) string {
	return r.prefix + strings.ToUpper(symbol)
}

func (r *RedisCache) Get(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	val, err := r.client.Get(ctx, r.key(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap model.MarketSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisCache) Set(ctx context.Context, snap *model.MarketSnapshot, ttl time.Duration) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(snap.Symbol), b, ttl).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CachedProvider serves snapshots from a cache and falls through to the
// wrapped provider on a miss. Cache failures are logged and otherwise ignored.
type CachedProvider struct {
	next   Provider
	cache  SnapshotCache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache SnapshotCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.With().Str("component", "snapshot_cache").Logger(),
	}
}

func (c *CachedProvider) Name() string { return "cached(" + c.next.Name() + ")" }

func (c *CachedProvider) Fetch(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	snap, err := c.cache.Get(ctx, symbol)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("cache read failed")
	}
	if snap != nil {
		return snap, nil
	}

	snap, err = c.next.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// priceless snapshots are not cached so the next call retries
	if snap.HasPrice() {
		if err := c.cache.Set(ctx, snap, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("cache write failed")
		}
	}
	return snap, nil
}
