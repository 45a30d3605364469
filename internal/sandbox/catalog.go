package sandbox

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

var (
	ErrUnknownCoupon  = errors.New("unknown coupon")
	ErrCouponExpired  = errors.New("coupon expired")
	ErrUnknownProduct = errors.New("unknown product")
)

// Coupon is a percentage discount on the cart subtotal.
type Coupon struct {
	Code       string
	PercentOff decimal.Decimal
	ExpiresAt  time.Time
}

// Catalog holds products, coupons and shipping methods.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]storefront.Product
	coupons  map[string]Coupon
	shipping []storefront.ShippingMethod
	nowFunc  func() time.Time
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		products: map[string]storefront.Product{},
		coupons:  map[string]Coupon{},
		nowFunc:  time.Now,
	}
}

// DefaultCatalog is the demo store: a handful of products, SUMMER25 (25% off)
// and the expired WINTER10.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, p := range []storefront.Product{
		{ID: "p-mug", Name: "Stoneware Mug", Price: decimal.NewFromInt(349), Stock: 25},
		{ID: "p-tee", Name: "Organic Cotton Tee", Price: decimal.NewFromInt(599), Stock: 40},
		{ID: "p-lamp", Name: "Brass Desk Lamp", Price: decimal.NewFromInt(1899), Stock: 8},
		{ID: "p-rug", Name: "Handwoven Rug", Price: decimal.NewFromInt(2499), Stock: 1},
		{ID: "p-chair", Name: "Teak Lounge Chair", Price: decimal.NewFromInt(6499), Stock: 3},
	} {
		c.AddProduct(p)
	}
	c.AddCoupon(Coupon{Code: "SUMMER25", PercentOff: decimal.NewFromInt(25), ExpiresAt: time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)})
	c.AddCoupon(Coupon{Code: "WINTER10", PercentOff: decimal.NewFromInt(10), ExpiresAt: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)})
	c.SetShippingMethods([]storefront.ShippingMethod{
		{ID: "standard", Name: "Standard Delivery", Price: decimal.NewFromInt(49), EstimatedDays: 5},
		{ID: "express", Name: "Express Delivery", Price: decimal.NewFromInt(149), EstimatedDays: 2},
		{ID: "pickup", Name: "Store Pickup", Price: decimal.Zero, EstimatedDays: 1},
	})
	return c
}

func (c *Catalog) AddProduct(p storefront.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) AddCoupon(cp Coupon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coupons[strings.ToUpper(cp.Code)] = cp
}

func (c *Catalog) SetShippingMethods(m []storefront.ShippingMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shipping = append([]storefront.ShippingMethod(nil), m...)
}

// Products lists the catalog ordered by id.
func (c *Catalog) Products() []storefront.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]storefront.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Product(id string) (storefront.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// Reserve decrements stock for every line or for none.
func (c *Catalog) Reserve(lines map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, qty := range lines {
		p, ok := c.products[id]
		if !ok {
			return errors.Wrap(ErrUnknownProduct, id)
		}
		if qty > p.Stock {
			return &stockError{name: p.Name, stock: p.Stock}
		}
	}
	for id, qty := range lines {
		p := c.products[id]
		p.Stock -= qty
		c.products[id] = p
	}
	return nil
}

// Coupon looks up a usable coupon.
func (c *Catalog) Coupon(code string) (Coupon, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Coupon{}, ErrUnknownCoupon
	}
	if !cp.ExpiresAt.IsZero() && c.nowFunc().After(cp.ExpiresAt) {
		return cp, ErrCouponExpired
	}
	return cp, nil
}

func (c *Catalog) ShippingMethods() []storefront.ShippingMethod {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]storefront.ShippingMethod(nil), c.shipping...)
}

func (c *Catalog) ShippingMethod(id string) (storefront.ShippingMethod, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.shipping {
		if m.ID == id {
			return m, true
		}
	}
	return storefront.ShippingMethod{}, false
}

// Release returns reserved stock.
func (c *Catalog) Release(lines map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, qty := range lines {
		if p, ok := c.products[id]; ok {
			p.Stock += qty
			c.products[id] = p
		}
	}
}
