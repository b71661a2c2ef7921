package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestOrderCache_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)
	ctx := context.Background()

	order := &domain.Order{
		TokenValue: "tok-1",
		Total:      2500,
		Items: []domain.LineItem{
			{ID: 1, Variant: domain.Ref{IRI: "/api/v2/shop/product-variants/MUG", Code: "MUG"}, Quantity: 2},
		},
		PromotionCoupon: &domain.Coupon{Code: "SUMMER10"},
	}
	require.NoError(t, cache.Set(ctx, "tok-1", order, 0))
	assert.True(t, mr.Exists("order:tok-1"))

	got, err := cache.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, order.Total, got.Total)
	assert.Equal(t, "MUG", got.Items[0].Variant.Code)
	code, ok := got.CouponCode()
	assert.True(t, ok)
	assert.Equal(t, "SUMMER10", code)
}

func TestOrderCache_TTLWithJitter(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)

	require.NoError(t, cache.Set(context.Background(), "tok-1", &domain.Order{TokenValue: "tok-1"}, 0))

	ttl := mr.TTL("order:tok-1")
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)
}

func TestOrderCache_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisCache(client)

	got, err := cache.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestOrderCache_InvalidJSON(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)
	require.NoError(t, mr.Set("order:tok-1", "{not json"))

	_, err := cache.Get(context.Background(), "tok-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestOrderCache_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tok-1", &domain.Order{TokenValue: "tok-1"}, 0))
	require.NoError(t, cache.Delete(ctx, "tok-1"))
	assert.False(t, mr.Exists("order:tok-1"))

	_, err := cache.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestOrderCache_SetRejectedAfterDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)
	ctx := context.Background()

	before, err := cache.Generation(ctx, "tok-1")
	require.NoError(t, err)
	assert.Zero(t, before)

	require.NoError(t, cache.Delete(ctx, "tok-1"))
	after, err := cache.Generation(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	err = cache.Set(ctx, "tok-1", &domain.Order{TokenValue: "tok-1", Total: 100}, before)
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.False(t, mr.Exists("order:tok-1"))

	require.NoError(t, cache.Set(ctx, "tok-1", &domain.Order{TokenValue: "tok-1", Total: 200}, after))
	got, err := cache.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Total)
	assert.Greater(t, mr.TTL("order-gen:tok-1"), time.Hour)
}

func TestOrderCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "tok-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSyncGuard_AcquireOncePerPairing(t *testing.T) {
	client, mr := setupTestRedis(t)
	guard := NewSyncGuard(client)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "/api/v2/shop/customers/5", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, "/api/v2/shop/customers/5", "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.Acquire(ctx, "/api/v2/shop/customers/6", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok, "another customer is a new pairing")

	ok, err = guard.Acquire(ctx, "/api/v2/shop/customers/5", "tok-2")
	require.NoError(t, err)
	assert.True(t, ok, "another order is a new pairing")

	mr.FastForward(25 * time.Hour)
	ok, err = guard.Acquire(ctx, "/api/v2/shop/customers/5", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
