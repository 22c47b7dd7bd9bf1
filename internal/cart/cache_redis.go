package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL keeps an idle user's counter around far longer than any
// view or in-flight load could.
const generationTTL = 24 * time.Hour

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID int64) (View, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return View{}, ErrCacheMiss
	}
	if err != nil {
		return View{}, fmt.Errorf("redis get failed: %w", err)
	}

	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		return View{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return v, nil
}

func (r *RedisCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// setIfCurrent writes the view only while the generation still matches.
// KEYS[1] generation, KEYS[2] view; ARGV[1] gen, ARGV[2] data, ARGV[3] ttl ms.
var setIfCurrent = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if (cur or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

func (r *RedisCache) Set(ctx context.Context, userID, gen int64, view View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// spread expiries so carts cached together do not all miss together
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL)/10 + 1))
	ttl := r.baseTTL + jitter
	stored, err := setIfCurrent.Run(ctx, r.client,
		[]string{generationKey(userID), cacheKey(userID)},
		strconv.FormatInt(gen, 10), data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if stored == 0 {
		return ErrStaleGeneration
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func generationKey(userID int64) string {
	return fmt.Sprintf("cart:gen:%d", userID)
}
