package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON fetches a cached value into dest. Returns false when the key is
// missing, the cache is unavailable, or the payload cannot be decoded.
func GetJSON(ctx context.Context, key string, dest any) bool {
	if client == nil {
		return false
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// SetJSON stores a value under key with the given TTL. Failures are silently
// ignored; the cache is an optimization, not a source of truth.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.Set(ctx, key, raw, ttl)
}

// Aside implements the cache-aside pattern: return the cached value when
// present, otherwise run load and cache its result. load errors propagate
// uncached.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if GetJSON(ctx, key, dest) {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	SetJSON(ctx, key, dest, ttl)
	return nil
}

// Healthy reports whether the cache connection responds to PING.
func Healthy(ctx context.Context) bool {
	if client == nil {
		return false
	}
	err := client.Ping(ctx).Err()
	return err == nil || errors.Is(err, redis.Nil)
}
