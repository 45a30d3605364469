package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CartLine is a stored cart line. PriceAtAdd is fixed when the line is created.
type CartLine struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"priceAtAdd"`
}

// CartState is the persisted cart; all totals are derived when it is priced.
type CartState struct {
	ID             string     `json:"id"`
	Items          []CartLine `json:"items"`
	CouponCode     string     `json:"couponCode,omitempty"`
	ShippingMethod string     `json:"shippingMethod,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func newCartState() *CartState {
	return &CartState{ID: uuid.NewString()}
}

func (c *CartState) line(id string) (int, bool) {
	for i, l := range c.Items {
		if l.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (c *CartState) lineForProduct(productID string) (int, bool) {
	for i, l := range c.Items {
		if l.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// CartRepository persists carts per user. Get never returns a nil cart: a user
// without one gets a fresh empty cart.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*CartState, error)
	Save(ctx context.Context, userID string, cart *CartState) error
	Delete(ctx context.Context, userID string) error
}

// MemoryCarts keeps carts in process.
type MemoryCarts struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryCarts() *MemoryCarts {
	return &MemoryCarts{carts: map[string][]byte{}}
}

func (m *MemoryCarts) Get(ctx context.Context, userID string) (*CartState, error) {
	m.mu.Lock()
	raw, ok := m.carts[userID]
	m.mu.Unlock()
	if !ok {
		return newCartState(), nil
	}
	var c CartState
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (m *MemoryCarts) Save(ctx context.Context, userID string, cart *CartState) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = raw
	return nil
}

func (m *MemoryCarts) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// RedisCarts stores each cart as JSON under cart:{userID}.
type RedisCarts struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCarts(client *redis.Client) *RedisCarts {
	return &RedisCarts{
		client:  client,
		baseTTL: 7 * 24 * time.Hour,
	}
}

func (r *RedisCarts) Get(ctx context.Context, userID string) (*CartState, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return newCartState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c CartState
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (r *RedisCarts) Save(ctx context.Context, userID string, cart *CartState) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// spread expiries so abandoned carts do not all lapse together
	ttl := r.baseTTL + time.Duration(rand.Intn(60))*time.Minute
	if err := r.client.Set(ctx, cartKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCarts) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
