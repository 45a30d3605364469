package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCarts(t *testing.T) (*RedisCarts, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCarts(client), mr
}

func sampleState() *CartState {
	return &CartState{
		ID:             "c1",
		Items:          []CartLine{{ID: "l1", ProductID: "p-mug", Quantity: 2, PriceAtAdd: decimal.NewFromInt(349)}},
		CouponCode:     "SUMMER25",
		ShippingMethod: "standard",
	}
}

func TestRedisCarts_SaveGetDelete(t *testing.T) {
	repo, mr := setupRedisCarts(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", sampleState()))
	assert.True(t, mr.Exists(cartKey("u1")))
	assert.Greater(t, mr.TTL(cartKey("u1")), 7*24*time.Hour-time.Minute)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].PriceAtAdd.Equal(decimal.NewFromInt(349)))
	assert.Equal(t, "SUMMER25", got.CouponCode)

	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.False(t, mr.Exists(cartKey("u1")))
}

func TestRedisCarts_MissReturnsEmptyCart(t *testing.T) {
	repo, _ := setupRedisCarts(t)

	got, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Empty(t, got.Items)
}

func TestRedisCarts_CorruptData(t *testing.T) {
	repo, mr := setupRedisCarts(t)
	require.NoError(t, mr.Set(cartKey("u1"), "{not json"))

	_, err := repo.Get(context.Background(), "u1")
	assert.Error(t, err)
}

func TestRedisCarts_ServerDown(t *testing.T) {
	repo, mr := setupRedisCarts(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "u1")
	assert.Error(t, err)
}

func TestMemoryCarts_IsolatesCopies(t *testing.T) {
	repo := NewMemoryCarts()
	ctx := context.Background()
	st := sampleState()
	require.NoError(t, repo.Save(ctx, "u1", st))

	st.Items[0].Quantity = 99
	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestPrice_TotalsAndCoupon(t *testing.T) {
	s := New(Config{})
	st := sampleState()

	c := s.price(st)
	assert.True(t, c.Subtotal.Equal(decimal.NewFromInt(698)), c.Subtotal.String())
	assert.True(t, c.Discount.Equal(decimal.NewFromFloat(174.5)), c.Discount.String())
	assert.True(t, c.Shipping.Equal(decimal.NewFromInt(49)))
	assert.True(t, c.Total.Equal(c.Subtotal.Sub(c.Discount).Add(c.Shipping)))
	assert.Equal(t, 25, c.Items[0].Product.Stock)

	st.CouponCode = "WINTER10"
	assert.True(t, s.price(st).Discount.IsZero(), "expired coupons give no discount")
}

func TestCatalog_ReserveAllOrNothing(t *testing.T) {
	c := DefaultCatalog()

	err := c.Reserve(map[string]int{"p-mug": 1, "p-rug": 2})
	require.Error(t, err)
	mug, _ := c.Product("p-mug")
	assert.Equal(t, 25, mug.Stock)

	require.NoError(t, c.Reserve(map[string]int{"p-rug": 1}))
	rug, _ := c.Product("p-rug")
	assert.Equal(t, 0, rug.Stock)

	c.Release(map[string]int{"p-rug": 1})
	rug, _ = c.Product("p-rug")
	assert.Equal(t, 1, rug.Stock)
}
