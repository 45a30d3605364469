// Package storefront holds the canonical shapes exchanged with the storefront API.
// Every monetary and stock-dependent field is owned by the server; the client only
// mirrors what it is sent.
package storefront

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view of an item.
type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Images []string        `json:"images,omitempty"`
}

// CartItem is a single line in the cart. PriceAtAdd is captured when the item is
// added and does not follow later catalog price changes.
type CartItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"priceAtAdd"`
	Total      decimal.Decimal `json:"total"`
	Product    Product         `json:"product"`
}

// Cart is the server-computed aggregate for the current session.
type Cart struct {
	ID             string          `json:"id"`
	Items          []CartItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	ShippingMethod string          `json:"shippingMethod,omitempty"`
	CouponCode     string          `json:"couponCode,omitempty"`
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Item looks up a line by id.
func (c Cart) Item(id string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}

// Clone returns a copy that shares no slices with c.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		for i, it := range c.Items {
			it.Product.Images = append([]string(nil), it.Product.Images...)
			out.Items[i] = it
		}
	}
	return out
}

// ShippingMethod is one of the delivery options offered for the cart.
type ShippingMethod struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	EstimatedDays int             `json:"estimatedDays,omitempty"`
}

// Address belongs to the user profile. Checkout may read and append, nothing else.
type Address struct {
	ID        string `json:"id,omitempty"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required,numeric,len=6"`
	Country   string `json:"country" validate:"required"`
	IsDefault bool   `json:"isDefault"`
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=home work other"`
}

// Profile is the signed-in user's account.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Addresses []Address `json:"addresses"`
}

// DefaultAddress returns the address flagged as default, falling back to the first.
func (p Profile) DefaultAddress() (Address, bool) {
	for _, a := range p.Addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(p.Addresses) > 0 {
		return p.Addresses[0], true
	}
	return Address{}, false
}

// OrderStatus values are driven by the server only.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentStatus of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentMethod selected at checkout.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCOD    PaymentMethod = "cod"
)

// Valid reports whether m is one of the known methods.
func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCOD
}

// OrderLine is an item as captured on the order.
type OrderLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order as observed by the client.
type Order struct {
	ID            string          `json:"id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Address       Address         `json:"address"`
	Items         []OrderLine     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// OrderRequest is the checkout submission payload.
type OrderRequest struct {
	Address       Address       `json:"address"`
	Phone         string        `json:"phone"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// PaymentSession is issued by the server for a hosted-gateway payment.
type PaymentSession struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Key      string          `json:"key,omitempty"`
}

// PaymentConfirmation is what the gateway hands back on completion; it is
// forwarded as-is to the verification endpoint.
type PaymentConfirmation struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}
