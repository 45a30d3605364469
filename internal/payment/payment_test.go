package payment

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

func TestAttempt_VerifyOnce(t *testing.T) {
	a := NewAttempt("o1", "s1")

	require.NoError(t, a.BeginVerify())
	assert.ErrorIs(t, a.BeginVerify(), ErrIllegalTransition)
	assert.ErrorIs(t, a.Cancel(), ErrIllegalTransition)

	require.NoError(t, a.Finish(nil))
	assert.Equal(t, StateDone, a.State())
	select {
	case <-a.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestAttempt_CancelBlocksVerify(t *testing.T) {
	a := NewAttempt("o1", "s1")

	require.NoError(t, a.Cancel())
	assert.ErrorIs(t, a.BeginVerify(), ErrIllegalTransition)
	assert.Equal(t, StateCancelled, a.State())
}

func TestAttempt_FailedIsTerminal(t *testing.T) {
	a := NewAttempt("o1", "s1")
	require.NoError(t, a.BeginVerify())
	require.NoError(t, a.Finish(assert.AnError))

	assert.Equal(t, StateFailed, a.State())
	assert.Equal(t, assert.AnError, a.Err())
	assert.ErrorIs(t, a.BeginVerify(), ErrIllegalTransition)
	assert.ErrorIs(t, a.Finish(nil), ErrIllegalTransition)
}

func TestSignature(t *testing.T) {
	sig := Sign("secret", "sess_1", "pay_1")
	assert.True(t, VerifySignature("secret", "sess_1", "pay_1", sig))
	assert.False(t, VerifySignature("other", "sess_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "sess_1", "pay_2", sig))
	assert.False(t, VerifySignature("secret", "sess_1", "pay_1", "zz"))
}

func openTestGateway(t *testing.T, input string) (storefront.PaymentConfirmation, bool) {
	t.Helper()
	g := NewTestModeGateway("secret", strings.NewReader(input), io.Discard)

	success := make(chan storefront.PaymentConfirmation, 1)
	dismissed := make(chan struct{}, 1)
	err := g.Open(context.Background(), CheckoutOptions{
		SessionID: "sess_1",
		OrderID:   "o1",
		Amount:    decimal.NewFromInt(999),
		Currency:  "INR",
	}, Handlers{
		OnSuccess: func(c storefront.PaymentConfirmation) { success <- c },
		OnDismiss: func() { dismissed <- struct{}{} },
	})
	require.NoError(t, err)

	select {
	case c := <-success:
		return c, true
	case <-dismissed:
		return storefront.PaymentConfirmation{}, false
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never answered")
	}
	return storefront.PaymentConfirmation{}, false
}

func TestTestModeGateway_Confirm(t *testing.T) {
	conf, ok := openTestGateway(t, "y\n")
	require.True(t, ok)
	assert.Equal(t, "o1", conf.OrderID)
	assert.True(t, VerifySignature("secret", conf.SessionID, conf.PaymentID, conf.Signature))
}

func TestTestModeGateway_Dismiss(t *testing.T) {
	_, ok := openTestGateway(t, "n\n")
	assert.False(t, ok)
}

func TestTestModeGateway_PromptsShareInput(t *testing.T) {
	g := NewTestModeGateway("secret", strings.NewReader("n\ny\n"), io.Discard)
	opts := CheckoutOptions{SessionID: "sess_1", OrderID: "o1", Amount: decimal.NewFromInt(10), Currency: "INR"}

	answers := make(chan string, 2)
	h := Handlers{
		OnSuccess: func(storefront.PaymentConfirmation) { answers <- "paid" },
		OnDismiss: func() { answers <- "dismissed" },
	}
	for _, want := range []string{"dismissed", "paid"} {
		require.NoError(t, g.Open(context.Background(), opts, h))
		select {
		case got := <-answers:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("gateway never answered")
		}
	}
}

func TestTestModeGateway_CancelledPromptHandsLineToNext(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	g := NewTestModeGateway("secret", in, io.Discard)
	opts := CheckoutOptions{SessionID: "sess_1", OrderID: "o1", Amount: decimal.NewFromInt(10), Currency: "INR"}

	dismissed := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, g.Open(ctx, opts, Handlers{
		OnSuccess: func(storefront.PaymentConfirmation) { t.Error("cancelled prompt must not confirm") },
		OnDismiss: func() { dismissed <- struct{}{} },
	}))
	cancel()
	select {
	case <-dismissed:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled prompt was not dismissed")
	}

	paid := make(chan storefront.PaymentConfirmation, 1)
	require.NoError(t, g.Open(context.Background(), opts, Handlers{
		OnSuccess: func(c storefront.PaymentConfirmation) { paid <- c },
		OnDismiss: func() { t.Error("unexpected dismiss") },
	}))
	go func() { _, _ = io.WriteString(w, "yes\n") }()

	select {
	case c := <-paid:
		assert.True(t, VerifySignature("secret", c.SessionID, c.PaymentID, c.Signature))
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never answered")
	}
}
