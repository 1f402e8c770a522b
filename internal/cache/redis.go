package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/telemetrydev/datapoint/internal/circuitbreaker"
)

// RedisCache implements HashCache on a redis client. All operations run
// through a circuit breaker so a dead redis degrades to cache misses
// instead of a per-request timeout on every call.
type RedisCache struct {
	rdb     *redis.Client
	breaker *circuitbreaker.Breaker
}

// NewRedisCache wraps rdb. The breaker opens after threshold consecutive
// redis errors and retries after cooldown.
func NewRedisCache(rdb *redis.Client, breaker *circuitbreaker.Breaker) *RedisCache {
	return &RedisCache{rdb: rdb, breaker: breaker}
}

func (c *RedisCache) GetAll(ctx context.Context, key string) (map[string][]byte, error) {
	var raw map[string]string
	err := c.breaker.Do(func() error {
		var err error
		raw, err = c.rdb.HGetAll(ctx, key).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	fields := make(map[string][]byte, len(raw))
	for f, v := range raw {
		fields[f] = []byte(v)
	}
	return fields, nil
}

func (c *RedisCache) Get(ctx context.Context, key, field string) ([]byte, bool, error) {
	var val []byte
	found := true
	err := c.breaker.Do(func() error {
		b, err := c.rdb.HGet(ctx, key, field).Bytes()
		if err == redis.Nil {
			found = false
			return nil
		}
		val = b
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return val, found, nil
}

func (c *RedisCache) PutAll(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	args := make(map[string]any, len(fields))
	for f, v := range fields {
		args[f] = v
	}
	return c.breaker.Do(func() error {
		return c.rdb.HSet(ctx, key, args).Err()
	})
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.breaker.Do(func() error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}
