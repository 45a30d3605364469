package cart

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBusy means the same operation is already in flight and nothing was sent.
	// It is a deliberate no-op, not a failure, and is never notified.
	ErrBusy = errors.New("cart: operation already in flight")

	ErrExceedsStock     = errors.New("cart: quantity exceeds available stock")
	ErrInvalidQuantity  = errors.New("cart: quantity must be at least 1")
	ErrCouponRequired   = errors.New("cart: coupon code is required")
	ErrShippingRequired = errors.New("cart: shipping method is required")
	ErrEmptyResponse    = errors.New("cart: server returned no cart")
)

// StockError is returned when a requested quantity is above the product stock.
type StockError struct {
	ItemID    string
	Requested int
	Stock     int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("cart: item %s: requested %d, only %d in stock", e.ItemID, e.Requested, e.Stock)
}

func (e *StockError) Is(target error) bool { return target == ErrExceedsStock }

// UserMessage is the notification text for the stock bound.
func (e *StockError) UserMessage() string {
	if e.Stock == 1 {
		return "Only 1 item left in stock"
	}
	return fmt.Sprintf("Only %d items left in stock", e.Stock)
}
