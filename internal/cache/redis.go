package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/redis/go-redis/v9"
)

// generationTTL outlives any snapshot TTL so a generation never resets under
// a live snapshot.
const generationTTL = 24 * time.Hour

// setIfCurrent writes KEYS[1] only when the generation in KEYS[2] still
// equals ARGV[1].
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, token string) (*domain.Order, error) {
	data, err := r.client.Get(ctx, orderKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &order, nil
}

// Generation returns the token's invalidation counter, 0 before the first Delete.
func (r *RedisCache) Generation(ctx context.Context, token string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(token)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (r *RedisCache) Set(ctx context.Context, token string, order *domain.Order, generation int64) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}

	// jitter spreads expiry of snapshots written in bursts
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	written, err := setIfCurrent.Run(ctx, r.client,
		[]string{orderKey(token), generationKey(token)},
		strconv.FormatInt(generation, 10), data, (r.baseTTL + jitter).Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return ErrStaleSnapshot
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, token string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(token))
		pipe.Expire(ctx, generationKey(token), generationTTL)
		pipe.Del(ctx, orderKey(token))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func orderKey(token string) string {
	return fmt.Sprintf("order:%s", token)
}

func generationKey(token string) string {
	return fmt.Sprintf("order-gen:%s", token)
}
