// Package cart keeps the client-side mirror of the server-owned cart. The snapshot
// is never edited locally: every successful mutation replaces it with the cart the
// server returned, and every failure leaves it untouched.
package cart

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/notify"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// Busy scopes. Item scopes are built with ItemScope.
const (
	ScopeCart     = "cart"
	ScopeCoupon   = "coupon"
	ScopeShipping = "shipping"
)

// ItemScope is the busy scope of a single cart line.
func ItemScope(itemID string) string { return "item:" + itemID }

// Backend is the subset of the storefront API the store needs.
type Backend interface {
	GetCart(ctx context.Context) (*storefront.Cart, error)
	AddItem(ctx context.Context, productID string, quantity int) (*storefront.Cart, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*storefront.Cart, error)
	RemoveItem(ctx context.Context, itemID string) (*storefront.Cart, error)
	ClearCart(ctx context.Context) (*storefront.Cart, error)
	ApplyCoupon(ctx context.Context, code string) (*storefront.Cart, error)
	RemoveCoupon(ctx context.Context) (*storefront.Cart, error)
	ListShippingMethods(ctx context.Context) ([]storefront.ShippingMethod, error)
	ApplyShipping(ctx context.Context, methodID string) (*storefront.Cart, error)
}

// Store is the single source of truth for cart state within a session.
type Store struct {
	backend  Backend
	notifier notify.Notifier
	logger   *log.Entry

	mu      sync.RWMutex
	cart    storefront.Cart
	loaded  bool
	loadErr error
	busy    map[string]struct{}
	// version counts replacements of cart.
	version uint64

	refresh singleflight.Group
}

// NewStore returns an empty store; call Refresh to load the cart.
func NewStore(backend Backend, notifier notify.Notifier) *Store {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Store{
		backend:  backend,
		notifier: notifier,
		logger:   log.WithField("component", "cart"),
		busy:     make(map[string]struct{}),
	}
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() storefront.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Loaded reports whether a cart has been received from the server.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadError is the error of the last failed Refresh, cleared by the next success.
func (s *Store) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// IsBusy reports whether an operation holds scope.
func (s *Store) IsBusy(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.busy[scope]
	return ok
}

// IsItemBusy reports whether a mutation of the given line is in flight.
func (s *Store) IsItemBusy(itemID string) bool { return s.IsBusy(ItemScope(itemID)) }

type fetched struct {
	cart  *storefront.Cart
	since uint64
}

// Refresh reloads the cart. Concurrent callers share one request.
// A failure keeps the previous snapshot and is reported through LoadError
// rather than a notification. A cart fetched before a mutation that finished
// first is discarded and the newer snapshot returned.
func (s *Store) Refresh(ctx context.Context) (storefront.Cart, error) {
	v, err, _ := s.refresh.Do(ScopeCart, func() (interface{}, error) {
		s.mu.RLock()
		since := s.version
		s.mu.RUnlock()

		c, err := s.backend.GetCart(ctx)
		if err == nil && c == nil {
			err = ErrEmptyResponse
		}
		return fetched{cart: c, since: since}, err
	})
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		s.logger.WithError(err).Warn("cart refresh failed")
		return storefront.Cart{}, err
	}
	f := v.(fetched)
	if cur, ok := s.replaceSince(f.cart, f.since); !ok {
		s.logger.Debug("discarded cart fetched before a newer mutation")
		return cur, nil
	}
	return f.cart.Clone(), nil
}

// AddItem adds a product to the cart.
func (s *Store) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return s.reject(ErrInvalidQuantity, "Quantity must be at least 1")
	}
	return s.mutate(ctx, "product:"+productID, "add_item", func(ctx context.Context) (*storefront.Cart, error) {
		return s.backend.AddItem(ctx, productID, quantity)
	}, "Added to cart")
}

// UpdateQuantity sets the quantity of item. Quantities above the product stock are
// rejected locally without a request.
func (s *Store) UpdateQuantity(ctx context.Context, item storefront.CartItem, quantity int) error {
	if quantity < 1 {
		return s.reject(ErrInvalidQuantity, "Quantity must be at least 1")
	}
	if quantity > item.Product.Stock {
		serr := &StockError{ItemID: item.ID, Requested: quantity, Stock: item.Product.Stock}
		return s.reject(serr, serr.UserMessage())
	}
	return s.mutate(ctx, ItemScope(item.ID), "update_quantity", func(ctx context.Context) (*storefront.Cart, error) {
		return s.backend.UpdateItemQuantity(ctx, item.ID, quantity)
	}, "Cart updated")
}

// RemoveItem deletes item from the cart.
func (s *Store) RemoveItem(ctx context.Context, item storefront.CartItem) error {
	return s.mutate(ctx, ItemScope(item.ID), "remove_item", func(ctx context.Context) (*storefront.Cart, error) {
		return s.backend.RemoveItem(ctx, item.ID)
	}, "Item removed from cart")
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, ScopeCart, "clear_cart", s.backend.ClearCart, "Cart cleared")
}

// ApplyCoupon applies code. Coupon apply and remove share one scope.
func (s *Store) ApplyCoupon(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.reject(ErrCouponRequired, "Please enter a coupon code")
	}
	return s.mutate(ctx, ScopeCoupon, "apply_coupon", func(ctx context.Context) (*storefront.Cart, error) {
		return s.backend.ApplyCoupon(ctx, code)
	}, "Coupon applied")
}

// RemoveCoupon drops the applied coupon.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	return s.mutate(ctx, ScopeCoupon, "remove_coupon", s.backend.RemoveCoupon, "Coupon removed")
}

// ShippingMethods lists the delivery options for the cart.
func (s *Store) ShippingMethods(ctx context.Context) ([]storefront.ShippingMethod, error) {
	methods, err := s.backend.ListShippingMethods(ctx)
	if err != nil {
		notify.Error(s.notifier, api.UserMessage(err))
		return nil, err
	}
	return methods, nil
}

// ApplyShipping selects the shipping method.
func (s *Store) ApplyShipping(ctx context.Context, methodID string) error {
	if strings.TrimSpace(methodID) == "" {
		return s.reject(ErrShippingRequired, "Please select a shipping method")
	}
	return s.mutate(ctx, ScopeShipping, "apply_shipping", func(ctx context.Context) (*storefront.Cart, error) {
		return s.backend.ApplyShipping(ctx, methodID)
	}, "Shipping method updated")
}

func (s *Store) mutate(ctx context.Context, scope, op string, call func(context.Context) (*storefront.Cart, error), success string) error {
	if !s.acquire(scope) {
		s.logger.WithFields(log.Fields{"op": op, "scope": scope}).Debug("dropped: already in flight")
		return ErrBusy
	}
	defer s.release(scope)

	c, err := call(ctx)
	if err == nil && c == nil {
		err = ErrEmptyResponse
	}
	if err != nil {
		s.logger.WithFields(log.Fields{"op": op, "scope": scope}).WithError(err).Warn("cart mutation failed")
		notify.Error(s.notifier, api.UserMessage(err))
		return err
	}

	s.replace(c)
	notify.Success(s.notifier, success)
	return nil
}

// reject reports a local validation failure without touching the network.
func (s *Store) reject(err error, msg string) error {
	notify.Error(s.notifier, msg)
	return err
}

func (s *Store) acquire(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.busy[scope]; held {
		return false
	}
	s.busy[scope] = struct{}{}
	return true
}

func (s *Store) release(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, scope)
}

// replace swaps in the server's cart as-is; totals are never recomputed here.
func (s *Store) replace(c *storefront.Cart) {
	next := c.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swapLocked(next)
}

// replaceSince is replace for a cart requested at version since. It keeps the
// current snapshot, and returns a copy of it, if the cart was replaced meanwhile.
func (s *Store) replaceSince(c *storefront.Cart, since uint64) (storefront.Cart, bool) {
	next := c.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != since {
		return s.cart.Clone(), false
	}
	s.swapLocked(next)
	return storefront.Cart{}, true
}

func (s *Store) swapLocked(c storefront.Cart) {
	s.cart = c
	s.loaded = true
	s.loadErr = nil
	s.version++
}
