// Package cache keeps CoinGecko responses in Redis between passes so that
// frequent schedules stay inside the public rate limit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const defaultPrefix = "cryptoanalyst:"

// errMiss marks a key that is not cached.
var errMiss = errors.New("cache miss")

// store is the subset of Redis the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (r redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMiss
	}
	return b, err
}

func (r redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// PriceCache is a read-through cache in front of a PriceSource. Redis
// failures are logged and bypassed.
type PriceCache struct {
	source interfaces.PriceSource
	store  store
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

var _ interfaces.PriceSource = (*PriceCache)(nil)

func NewPriceCache(source interfaces.PriceSource, client *redis.Client, ttl time.Duration, log *logger.Logger) *PriceCache {
	return newPriceCache(source, redisStore{client: client}, ttl, log)
}

func newPriceCache(source interfaces.PriceSource, s store, ttl time.Duration, log *logger.Logger) *PriceCache {
	return &PriceCache{source: source, store: s, ttl: ttl, prefix: defaultPrefix, log: log}
}

func (c *PriceCache) Prices(ctx context.Context, ids []string) (types.PriceIndex, error) {
	key := c.pricesKey(ids)

	var cached types.PriceIndex
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	prices, err := c.source.Prices(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, prices)
	return prices, nil
}

func (c *PriceCache) BitcoinDominance(ctx context.Context) (*float64, error) {
	key := c.prefix + "btc_dominance"

	var cached float64
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	v, err := c.source.BitcoinDominance(ctx)
	if err != nil || v == nil {
		return v, err
	}
	c.save(ctx, key, *v)
	return v, nil
}

func (c *PriceCache) pricesKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return c.prefix + "prices:" + strings.Join(sorted, ",")
}

func (c *PriceCache) load(ctx context.Context, key string, v any) bool {
	b, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, errMiss):
		return false
	case err != nil:
		c.log.Warn(ctx, "Cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		c.log.Warn(ctx, "Discarding unreadable cache entry", "key", key, "error", err)
		return false
	}
	c.log.Debug(ctx, "Cache hit", "key", key)
	return true
}

func (c *PriceCache) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.log.Warn(ctx, "Cache write failed", "key", key, "error", err)
	}
}
