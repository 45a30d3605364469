package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// Prefill is shown pre-populated in the gateway form.
type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// CheckoutOptions are handed to the gateway when it opens.
type CheckoutOptions struct {
	Key       string
	SessionID string
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	Prefill   Prefill
	Theme     string
}

// Handlers receive the gateway outcome. Exactly one of them is expected to fire,
// but callers must tolerate duplicates and races between the two.
type Handlers struct {
	OnSuccess func(storefront.PaymentConfirmation)
	OnDismiss func()
}

// Gateway opens a hosted checkout. Open returns once the gateway is showing; the
// outcome arrives later through the handlers.
type Gateway interface {
	Open(ctx context.Context, opts CheckoutOptions, h Handlers) error
}
