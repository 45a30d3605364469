package validation

import "github.com/imrishuroy/go-storefront-checkout/internal/storefront"

// LoginRequest is the payload for POST /api/auth/login
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// AddItemRequest is the payload for POST /api/cart/items
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// UpdateQuantityRequest is the payload for PUT /api/cart/items/:itemId
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// ApplyCouponRequest is the payload for POST /api/cart/coupon
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// ApplyShippingRequest is the payload for PUT /api/cart/shipping
type ApplyShippingRequest struct {
	MethodID string `json:"methodId" validate:"required"`
}

// CreateOrderRequest is the payload for POST /api/orders
type CreateOrderRequest struct {
	Address       storefront.Address `json:"address"`                                     // snapshot, validated field by field
	Phone         string             `json:"phone" validate:"required,mobile"`            // 10-digit mobile
	PaymentMethod string             `json:"paymentMethod" validate:"required,oneof=online cod"`
}

// PaymentSessionRequest is the payload for POST /api/payments/session
type PaymentSessionRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// VerifyPaymentRequest is the payload for POST /api/payments/verify
type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}
