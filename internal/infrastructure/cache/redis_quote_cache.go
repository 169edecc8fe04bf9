// Package cache keeps schedule previews in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bibbank/loanbook/internal/domain/model"
)

const keyPrefix = "loanbook:quote:"

// Client is the subset of *redis.Client used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisQuoteCache implements port.QuoteCache. Entries expire after ttl; zero keeps them.
type RedisQuoteCache struct {
	client Client
	ttl    time.Duration
}

func NewRedisQuoteCache(client Client, ttl time.Duration) *RedisQuoteCache {
	return &RedisQuoteCache{client: client, ttl: ttl}
}

// NewClient connects to addr. The connection is lazy; use Ping to verify it.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *RedisQuoteCache) Get(ctx context.Context, key string) (model.Quote, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Quote{}, false, nil
	}
	if err != nil {
		return model.Quote{}, false, fmt.Errorf("redis get quote: %w", err)
	}

	var q model.Quote
	if err := json.Unmarshal(val, &q); err != nil {
		return model.Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return q, true, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, key string, quote model.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set quote: %w", err)
	}
	return nil
}

func (c *RedisQuoteCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
