package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// GetCart fetches the current cart.
func (c *Client) GetCart(ctx context.Context) (*storefront.Cart, error) {
	var cart storefront.Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &cart, nil, "cart"); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds a product to the cart and returns the new cart.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (*storefront.Cart, error) {
	body := map[string]interface{}{"productId": productID, "quantity": quantity}
	return c.cartCall(ctx, http.MethodPost, "/api/cart/items", body)
}

// UpdateItemQuantity sets the quantity of a cart line.
func (c *Client) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*storefront.Cart, error) {
	body := map[string]interface{}{"quantity": quantity}
	return c.cartCall(ctx, http.MethodPut, "/api/cart/items/"+url.PathEscape(itemID), body)
}

// RemoveItem deletes a cart line.
func (c *Client) RemoveItem(ctx context.Context, itemID string) (*storefront.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(itemID), nil)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*storefront.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/api/cart", nil)
}

// ApplyCoupon applies a coupon code.
func (c *Client) ApplyCoupon(ctx context.Context, code string) (*storefront.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/api/cart/coupon", map[string]string{"code": code})
}

// RemoveCoupon drops the applied coupon.
func (c *Client) RemoveCoupon(ctx context.Context) (*storefront.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/api/cart/coupon", nil)
}

// ListShippingMethods returns the shipping options for the cart.
func (c *Client) ListShippingMethods(ctx context.Context) ([]storefront.ShippingMethod, error) {
	var methods []storefront.ShippingMethod
	if err := c.do(ctx, http.MethodGet, "/api/shipping-methods", nil, &methods, nil, "shippingMethods", "methods"); err != nil {
		return nil, err
	}
	return methods, nil
}

// ApplyShipping selects the shipping method for the cart.
func (c *Client) ApplyShipping(ctx context.Context, methodID string) (*storefront.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/api/cart/shipping", map[string]string{"methodId": methodID})
}

func (c *Client) cartCall(ctx context.Context, method, path string, body interface{}) (*storefront.Cart, error) {
	var cart storefront.Cart
	if err := c.do(ctx, method, path, body, &cart, nil, "cart"); err != nil {
		return nil, err
	}
	return &cart, nil
}
