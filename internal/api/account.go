package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// Login exchanges an email for a session token.
func (c *Client) Login(ctx context.Context, email string) (string, error) {
	var token string
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email}, &token, nil, "token"); err != nil {
		return "", err
	}
	return token, nil
}

// GetProfile returns the signed-in user's profile with addresses.
func (c *Client) GetProfile(ctx context.Context) (*storefront.Profile, error) {
	var p storefront.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &p, nil, "user", "profile"); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateAddress appends an address to the profile.
func (c *Client) CreateAddress(ctx context.Context, addr storefront.Address) (*storefront.Address, error) {
	var out storefront.Address
	if err := c.do(ctx, http.MethodPost, "/api/users/me/addresses", addr, &out, nil, "address"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProducts returns the catalog.
func (c *Client) ListProducts(ctx context.Context) ([]storefront.Product, error) {
	var products []storefront.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products, nil, "products"); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*storefront.Product, error) {
	var p storefront.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p, nil, "product"); err != nil {
		return nil, err
	}
	return &p, nil
}
