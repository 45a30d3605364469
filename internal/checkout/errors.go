package checkout

import "github.com/pkg/errors"

var (
	ErrNoAddress            = errors.New("checkout: no delivery address selected")
	ErrUnknownAddress       = errors.New("checkout: address not found")
	ErrInvalidPhone         = errors.New("checkout: invalid phone number")
	ErrNoShippingMethod     = errors.New("checkout: no shipping method selected")
	ErrInvalidPaymentMethod = errors.New("checkout: no payment method selected")
	ErrCODUnavailable       = errors.New("checkout: cash on delivery unavailable for this order total")
	ErrEmptyCart            = errors.New("checkout: cart is empty")
	ErrNotInReview          = errors.New("checkout: order can only be placed from the review step")

	// ErrSubmitting means an order submission is already outstanding; nothing was sent.
	ErrSubmitting = errors.New("checkout: submission already in progress")
)

// User-facing messages.
const (
	msgNoAddress      = "Please select a delivery address"
	msgInvalidPhone   = "Please enter a valid 10-digit mobile number"
	msgNoShipping     = "Please select a shipping method"
	msgNoPayment      = "Please select a payment method"
	msgCODUnavailable = "Cash on delivery is not available for orders above ₹5000"
	msgEmptyCart      = "Your cart is empty"
	msgOrderPlaced    = "Order placed successfully"
	msgPaymentSuccess = "Payment successful"
	msgPaymentFailed  = "Payment verification failed. If you were charged, contact support with your order id."
	msgPaymentDismiss = "Payment cancelled. Your order is saved and you can try again."
	msgAddressSaved   = "Address added"
)
