package payment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// TestModeGateway stands in for the hosted widget on a terminal: it shows the
// amount, asks for confirmation, and signs a confirmation with the sandbox secret.
// All prompts of one gateway share a single buffered reader over its input.
type TestModeGateway struct {
	secret string
	in     *bufio.Reader
	out    io.Writer

	mu      sync.Mutex
	pending chan string
}

// NewTestModeGateway prompts on out and reads answers from in.
func NewTestModeGateway(secret string, in io.Reader, out io.Writer) *TestModeGateway {
	return &TestModeGateway{secret: secret, in: bufio.NewReader(in), out: out}
}

// Open prompts asynchronously; the answer is delivered through h.
//
// Reads from a terminal cannot be interrupted. When ctx is done first the
// prompt is dismissed and its read is abandoned: it stays outstanding and the
// line it returns answers the next prompt.
func (g *TestModeGateway) Open(ctx context.Context, opts CheckoutOptions, h Handlers) error {
	if opts.SessionID == "" {
		return errors.New("payment: missing session id")
	}
	fmt.Fprintf(g.out, "\n[test gateway] Pay %s %s for order %s? [y/N]: ", opts.Amount.StringFixed(2), opts.Currency, opts.OrderID)

	answer := g.readLine()
	go func() {
		select {
		case <-ctx.Done():
			h.OnDismiss()
		case line := <-answer:
			g.consumed(answer)
			a := strings.ToLower(strings.TrimSpace(line))
			if a != "y" && a != "yes" {
				h.OnDismiss()
				return
			}
			paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
			h.OnSuccess(storefront.PaymentConfirmation{
				OrderID:   opts.OrderID,
				SessionID: opts.SessionID,
				PaymentID: paymentID,
				Signature: Sign(g.secret, opts.SessionID, paymentID),
			})
		}
	}()
	return nil
}

// readLine returns the outstanding read, starting one if there is none.
func (g *TestModeGateway) readLine() chan string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		ch := make(chan string, 1)
		g.pending = ch
		go func() {
			line, _ := g.in.ReadString('\n')
			ch <- line
		}()
	}
	return g.pending
}

func (g *TestModeGateway) consumed(ch chan string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == ch {
		g.pending = nil
	}
}
