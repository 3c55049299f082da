package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "tutors:search:gen"

// RedisCache stores public tutor search pages. Keys are scoped by a generation
// counter so a single INCR invalidates every cached page.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	gen, err := r.generation(ctx)
	if err != nil {
		return nil, false
	}

	val, err := r.rdb.Get(ctx, scopedKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return nil, false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key string, data []byte) {
	gen, err := r.generation(ctx)
	if err != nil {
		return
	}
	r.rdb.Set(ctx, scopedKey(gen, key), data, r.ttl)
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	const op = "cache.RedisCache.Invalidate"

	if err := r.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := r.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func scopedKey(gen int64, key string) string {
	return fmt.Sprintf("tutors:search:%d:%s", gen, key)
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte)        {}
func (Nop) Invalidate(context.Context) error           { return nil }
