package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// IdempotencyHeader carries the client-generated key for order creation.
const IdempotencyHeader = "Idempotency-Key"

// CreateOrder submits the checkout. The idempotency key lets the server replay the
// original response if the same submission reaches it twice.
func (c *Client) CreateOrder(ctx context.Context, req storefront.OrderRequest, idempotencyKey string) (*storefront.Order, error) {
	hdr := http.Header{}
	if idempotencyKey != "" {
		hdr.Set(IdempotencyHeader, idempotencyKey)
	}
	var o storefront.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &o, hdr, "order"); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns the user's order history.
func (c *Client) ListOrders(ctx context.Context) ([]storefront.Order, error) {
	var orders []storefront.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders, nil, "orders"); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns one order.
func (c *Client) GetOrder(ctx context.Context, id string) (*storefront.Order, error) {
	var o storefront.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &o, nil, "order"); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreatePaymentSession asks the server for a hosted-gateway session for an order.
func (c *Client) CreatePaymentSession(ctx context.Context, orderID string) (*storefront.PaymentSession, error) {
	var s storefront.PaymentSession
	if err := c.do(ctx, http.MethodPost, "/api/payments/session", map[string]string{"orderId": orderID}, &s, nil, "session"); err != nil {
		return nil, err
	}
	return &s, nil
}

// VerifyPayment forwards the gateway confirmation for server-side verification.
func (c *Client) VerifyPayment(ctx context.Context, conf storefront.PaymentConfirmation) (*storefront.Order, error) {
	var o storefront.Order
	if err := c.do(ctx, http.MethodPost, "/api/payments/verify", conf, &o, nil, "order"); err != nil {
		return nil, err
	}
	return &o, nil
}
