package checkout

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/notify"
	"github.com/imrishuroy/go-storefront-checkout/internal/payment"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

type fakeAPI struct {
	mu sync.Mutex

	profile    storefront.Profile
	orderErr   error
	sessionErr error
	verifyErr  error

	orderKeys   []string
	orderReqs   []storefront.OrderRequest
	sessions    int
	verifies    int
	addresses   int
	orderGate   chan struct{}
	orderEnters chan struct{}

	// stored makes CreateOrder replay the first order made under a key, the
	// way the server's idempotency layer does. lost drops that many responses
	// after the order was stored.
	stored map[string]storefront.Order
	lost   int
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*storefront.Profile, error) {
	p := f.profile
	return &p, nil
}

func (f *fakeAPI) CreateAddress(ctx context.Context, addr storefront.Address) (*storefront.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses++
	addr.ID = "addr-new"
	return &addr, nil
}

func (f *fakeAPI) CreateOrder(ctx context.Context, req storefront.OrderRequest, key string) (*storefront.Order, error) {
	if f.orderGate != nil {
		f.orderEnters <- struct{}{}
		<-f.orderGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderKeys = append(f.orderKeys, key)
	f.orderReqs = append(f.orderReqs, req)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	if f.stored == nil {
		return &storefront.Order{ID: "ord-1", Status: storefront.OrderPlaced, PaymentStatus: storefront.PaymentPending, PaymentMethod: req.PaymentMethod}, nil
	}
	if o, ok := f.stored[key]; ok {
		return &o, nil
	}
	o := storefront.Order{ID: "ord-" + string(req.PaymentMethod), Status: storefront.OrderPlaced, PaymentStatus: storefront.PaymentPending, PaymentMethod: req.PaymentMethod}
	f.stored[key] = o
	if f.lost > 0 {
		f.lost--
		return nil, context.DeadlineExceeded
	}
	return &o, nil
}

func (f *fakeAPI) CreatePaymentSession(ctx context.Context, orderID string) (*storefront.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &storefront.PaymentSession{ID: "sess-1", OrderID: orderID, Amount: decimal.NewFromInt(6200), Currency: "INR", Key: "pk_test"}, nil
}

func (f *fakeAPI) VerifyPayment(ctx context.Context, conf storefront.PaymentConfirmation) (*storefront.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &storefront.Order{ID: conf.OrderID, Status: storefront.OrderPlaced, PaymentStatus: storefront.PaymentPaid}, nil
}

func (f *fakeAPI) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orderReqs)
}

type fakeCart struct {
	mu        sync.Mutex
	cart      storefront.Cart
	refreshes int
	applied   []string
}

func (f *fakeCart) Snapshot() storefront.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone()
}

func (f *fakeCart) Refresh(ctx context.Context) (storefront.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.cart.Clone(), nil
}

func (f *fakeCart) ShippingMethods(ctx context.Context) ([]storefront.ShippingMethod, error) {
	return []storefront.ShippingMethod{{ID: "standard", Name: "Standard"}}, nil
}

func (f *fakeCart) ApplyShipping(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, id)
	f.cart.ShippingMethod = id
	return nil
}

func (f *fakeCart) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// fakeGateway captures the handlers so tests can fire them.
type fakeGateway struct {
	mu       sync.Mutex
	opens    int
	opts     payment.CheckoutOptions
	handlers payment.Handlers
}

func (g *fakeGateway) Open(ctx context.Context, opts payment.CheckoutOptions, h payment.Handlers) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opens++
	g.opts = opts
	g.handlers = h
	return nil
}

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type harness struct {
	o   *Orchestrator
	api *fakeAPI
	c   *fakeCart
	gw  *fakeGateway
	nav *navRecorder
	rec *notify.Recorder
}

func cartWithTotal(total string) storefront.Cart {
	return storefront.Cart{
		ID:             "c1",
		Items:          []storefront.CartItem{{ID: "i1", Name: "Lamp", Quantity: 1, Product: storefront.Product{ID: "p1", Stock: 5}}},
		Total:          decimal.RequireFromString(total),
		ShippingMethod: "standard",
	}
}

func newHarness(t *testing.T, c storefront.Cart) *harness {
	t.Helper()
	h := &harness{
		api: &fakeAPI{profile: storefront.Profile{
			ID:    "u1",
			Name:  "Asha",
			Email: "asha@example.com",
			Addresses: []storefront.Address{
				{ID: "a1", Street: "1 Lake Rd", City: "Pune", ZipCode: "411001", Country: "IN"},
				{ID: "a2", Street: "2 Hill St", City: "Pune", ZipCode: "411002", Country: "IN", IsDefault: true},
			},
		}},
		c:   &fakeCart{cart: c},
		gw:  &fakeGateway{},
		nav: &navRecorder{},
		rec: &notify.Recorder{},
	}
	h.o = New(Config{API: h.api, Cart: h.c, Gateway: h.gw, Navigator: h.nav, Notifier: h.rec})
	var keys int
	h.o.newKey = func() string {
		keys++
		return fmt.Sprintf("key-%d", keys)
	}
	return h
}

// toReview loads addresses, enters a phone and moves to review with method m.
func (h *harness) toReview(t *testing.T, m storefront.PaymentMethod) {
	t.Helper()
	require.NoError(t, h.o.LoadAddresses(context.Background()))
	h.o.SetPhone("9876543210")
	require.NoError(t, h.o.Continue())
	require.NoError(t, h.o.SelectPayment(m))
	h.rec.Reset()
}

func TestContinue_RequiresAddressAndPhone(t *testing.T) {
	h := newHarness(t, cartWithTotal("100"))

	assert.ErrorIs(t, h.o.Continue(), ErrNoAddress)

	require.NoError(t, h.o.LoadAddresses(context.Background()))
	addr, ok := h.o.SelectedAddress()
	require.True(t, ok)
	assert.Equal(t, "a2", addr.ID, "default address is preselected")

	for _, phone := range []string{"", "12345", "5876543210", "98765432100"} {
		h.o.SetPhone(phone)
		assert.ErrorIs(t, h.o.Continue(), ErrInvalidPhone, phone)
		assert.Equal(t, StepAddress, h.o.Step())
	}

	h.o.SetPhone("6123456789")
	require.NoError(t, h.o.Continue())
	assert.Equal(t, StepReview, h.o.Step())

	h.o.Back()
	assert.Equal(t, StepAddress, h.o.Step())
}

func TestSelectAddress_Unknown(t *testing.T) {
	h := newHarness(t, cartWithTotal("100"))
	require.NoError(t, h.o.LoadAddresses(context.Background()))

	assert.ErrorIs(t, h.o.SelectAddress("nope"), ErrUnknownAddress)
	require.NoError(t, h.o.SelectAddress("a1"))
	addr, _ := h.o.SelectedAddress()
	assert.Equal(t, "a1", addr.ID)
}

func TestAddAddress_ValidatesThenSelects(t *testing.T) {
	h := newHarness(t, cartWithTotal("100"))
	require.NoError(t, h.o.LoadAddresses(context.Background()))

	_, err := h.o.AddAddress(context.Background(), storefront.Address{Street: "x", City: "y", ZipCode: "12", Country: "IN"})
	require.Error(t, err)
	assert.Equal(t, 0, h.api.addresses)

	created, err := h.o.AddAddress(context.Background(), storefront.Address{Street: "9 Bay Rd", City: "Goa", ZipCode: "403001", Country: "IN", Type: "home"})
	require.NoError(t, err)
	assert.Equal(t, "addr-new", created.ID)
	assert.Len(t, h.o.Addresses(), 3)
	sel, _ := h.o.SelectedAddress()
	assert.Equal(t, "addr-new", sel.ID)
}

func TestCOD_UnavailableAboveLimit(t *testing.T) {
	h := newHarness(t, cartWithTotal("5000.01"))
	assert.False(t, h.o.CODAvailable())
	assert.ErrorIs(t, h.o.SelectPayment(storefront.PaymentCOD), ErrCODUnavailable)
	require.NoError(t, h.o.SelectPayment(storefront.PaymentOnline))

	h = newHarness(t, cartWithTotal("5000"))
	assert.True(t, h.o.CODAvailable())
}

func TestPlaceOrder_COD_Success(t *testing.T) {
	h := newHarness(t, cartWithTotal("1200"))
	h.toReview(t, storefront.PaymentCOD)

	require.NoError(t, h.o.PlaceOrder(context.Background()))

	require.Equal(t, 1, h.api.orderCount())
	req := h.api.orderReqs[0]
	assert.Equal(t, "a2", req.Address.ID)
	assert.Equal(t, "9876543210", req.Phone)
	assert.Equal(t, storefront.PaymentCOD, req.PaymentMethod)
	assert.NotEmpty(t, h.api.orderKeys[0])

	assert.Equal(t, 1, h.c.refreshCount())
	assert.Equal(t, []string{"/order-success/ord-1"}, h.nav.all())
	assert.Equal(t, 0, h.gw.opens)
	assert.Equal(t, 0, h.api.sessions)
	assert.False(t, h.o.Submitting())
}

func TestPlaceOrder_DoubleClick_SingleRequest(t *testing.T) {
	h := newHarness(t, cartWithTotal("1200"))
	h.toReview(t, storefront.PaymentCOD)
	h.api.orderGate = make(chan struct{})
	h.api.orderEnters = make(chan struct{})

	first := make(chan error, 1)
	go func() { first <- h.o.PlaceOrder(context.Background()) }()
	<-h.api.orderEnters

	assert.True(t, h.o.Submitting())
	assert.ErrorIs(t, h.o.PlaceOrder(context.Background()), ErrSubmitting)

	close(h.api.orderGate)
	require.NoError(t, <-first)
	assert.Equal(t, 1, h.api.orderCount())
}

func TestPlaceOrder_LocalValidation(t *testing.T) {
	t.Run("not in review", func(t *testing.T) {
		h := newHarness(t, cartWithTotal("100"))
		assert.ErrorIs(t, h.o.PlaceOrder(context.Background()), ErrNotInReview)
	})
	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t, storefront.Cart{ID: "c1", ShippingMethod: "standard"})
		h.toReview(t, storefront.PaymentCOD)
		assert.ErrorIs(t, h.o.PlaceOrder(context.Background()), ErrEmptyCart)
	})
	t.Run("no shipping method", func(t *testing.T) {
		c := cartWithTotal("100")
		c.ShippingMethod = ""
		h := newHarness(t, c)
		h.toReview(t, storefront.PaymentCOD)
		assert.True(t, h.o.NeedsShipping())

		err := h.o.PlaceOrder(context.Background())
		assert.ErrorIs(t, err, ErrNoShippingMethod)
		last, _ := h.rec.Last()
		assert.Equal(t, msgNoShipping, last.Message)

		opts, err := h.o.ShippingOptions(context.Background())
		require.NoError(t, err)
		require.NoError(t, h.o.ApplyShipping(context.Background(), opts[0].ID))
		assert.False(t, h.o.NeedsShipping())
		require.NoError(t, h.o.PlaceOrder(context.Background()))
	})
	t.Run("no payment method", func(t *testing.T) {
		h := newHarness(t, cartWithTotal("100"))
		require.NoError(t, h.o.LoadAddresses(context.Background()))
		h.o.SetPhone("9876543210")
		require.NoError(t, h.o.Continue())
		assert.ErrorIs(t, h.o.PlaceOrder(context.Background()), ErrInvalidPaymentMethod)
	})
	t.Run("cod over limit after cart changed", func(t *testing.T) {
		h := newHarness(t, cartWithTotal("100"))
		h.toReview(t, storefront.PaymentCOD)
		h.c.cart.Total = decimal.NewFromInt(9000)
		assert.ErrorIs(t, h.o.PlaceOrder(context.Background()), ErrCODUnavailable)
	})
}

func TestPlaceOrder_ServerErrorClearsFlag(t *testing.T) {
	h := newHarness(t, cartWithTotal("100"))
	h.toReview(t, storefront.PaymentCOD)
	h.api.orderErr = &api.Error{StatusCode: http.StatusConflict, Message: "Some items are out of stock"}

	err := h.o.PlaceOrder(context.Background())
	require.Error(t, err)
	assert.False(t, h.o.Submitting())
	last, _ := h.rec.Last()
	assert.Equal(t, notify.Notification{Level: notify.LevelError, Message: "Some items are out of stock"}, last)
	assert.Empty(t, h.nav.all())

	h.api.orderErr = nil
	require.NoError(t, h.o.PlaceOrder(context.Background()))
	assert.NotEqual(t, h.api.orderKeys[0], h.api.orderKeys[1], "a rejected submission does not reuse its key")
}

func TestPlaceOrder_TransportErrorKeepsKey(t *testing.T) {
	h := newHarness(t, cartWithTotal("100"))
	h.toReview(t, storefront.PaymentCOD)
	h.api.orderErr = context.DeadlineExceeded

	require.Error(t, h.o.PlaceOrder(context.Background()))
	h.api.orderErr = nil
	require.NoError(t, h.o.PlaceOrder(context.Background()))

	assert.Equal(t, h.api.orderKeys[0], h.api.orderKeys[1])
}

func TestPlaceOrder_UnknownOutcomeKeepsKey(t *testing.T) {
	cases := map[string]error{
		"breaker open":    &api.Error{StatusCode: http.StatusServiceUnavailable, Code: api.CodeCircuitOpen, Message: "The store is temporarily unavailable. Please try again shortly."},
		"in progress":     &api.Error{StatusCode: http.StatusConflict, Code: api.CodeRequestInProgress, Message: "Your order is already being processed"},
		"bad gateway":     &api.Error{StatusCode: http.StatusBadGateway, Message: api.FallbackMessage},
		"gateway timeout": &api.Error{StatusCode: http.StatusGatewayTimeout, Message: api.FallbackMessage},
	}
	for name, orderErr := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, cartWithTotal("100"))
			h.toReview(t, storefront.PaymentCOD)

			h.api.orderErr = context.DeadlineExceeded
			require.Error(t, h.o.PlaceOrder(context.Background()))
			h.api.orderErr = orderErr
			require.Error(t, h.o.PlaceOrder(context.Background()))
			assert.False(t, h.o.Submitting())

			h.api.orderErr = nil
			require.NoError(t, h.o.PlaceOrder(context.Background()))
			require.Len(t, h.api.orderKeys, 3)
			assert.Equal(t, h.api.orderKeys[0], h.api.orderKeys[1])
			assert.Equal(t, h.api.orderKeys[0], h.api.orderKeys[2])
		})
	}
}

func TestPlaceOrder_ChangedRequestGetsNewKey(t *testing.T) {
	edits := map[string]func(t *testing.T, h *harness){
		"payment method": func(t *testing.T, h *harness) {
			require.NoError(t, h.o.SelectPayment(storefront.PaymentCOD))
		},
		"address": func(t *testing.T, h *harness) {
			h.o.Back()
			require.NoError(t, h.o.SelectAddress("a1"))
			require.NoError(t, h.o.Continue())
		},
		"phone": func(t *testing.T, h *harness) {
			h.o.Back()
			h.o.SetPhone("9123456780")
			require.NoError(t, h.o.Continue())
		},
	}
	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, cartWithTotal("1200"))
			h.toReview(t, storefront.PaymentOnline)
			h.api.stored = map[string]storefront.Order{}
			h.api.lost = 1

			require.Error(t, h.o.PlaceOrder(context.Background()))
			edit(t, h)
			require.NoError(t, h.o.PlaceOrder(context.Background()))

			require.Len(t, h.api.orderKeys, 2)
			assert.NotEqual(t, h.api.orderKeys[0], h.api.orderKeys[1])
		})
	}
}

func TestPlaceOrder_ReplayFollowsOrderMethod(t *testing.T) {
	t.Run("online order replayed for cod request", func(t *testing.T) {
		h := newHarness(t, cartWithTotal("1200"))
		h.toReview(t, storefront.PaymentOnline)
		h.o.newKey = func() string { return "key-same" }
		h.api.stored = map[string]storefront.Order{}
		h.api.lost = 1

		require.Error(t, h.o.PlaceOrder(context.Background()))
		h.o.Back()
		require.NoError(t, h.o.Continue())
		require.NoError(t, h.o.SelectPayment(storefront.PaymentCOD))
		require.NoError(t, h.o.PlaceOrder(context.Background()))

		assert.Equal(t, 1, h.gw.opens, "unpaid online order goes to the gateway")
		assert.Equal(t, "ord-online", h.gw.opts.OrderID)
		assert.Empty(t, h.nav.all())
		assert.True(t, h.o.Submitting())

		h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{PaymentID: "pay_1", Signature: "ab"})
		assert.Equal(t, []string{"/order-success/ord-online"}, h.nav.all())
	})
	t.Run("cod order replayed for online request", func(t *testing.T) {
		h := newHarness(t, cartWithTotal("1200"))
		h.toReview(t, storefront.PaymentCOD)
		h.o.newKey = func() string { return "key-same" }
		h.api.stored = map[string]storefront.Order{}
		h.api.lost = 1

		require.Error(t, h.o.PlaceOrder(context.Background()))
		require.NoError(t, h.o.SelectPayment(storefront.PaymentOnline))
		require.NoError(t, h.o.PlaceOrder(context.Background()))

		assert.Equal(t, 0, h.api.sessions)
		assert.Equal(t, 0, h.gw.opens)
		assert.Equal(t, []string{"/order-success/ord-cod"}, h.nav.all())
		assert.False(t, h.o.Submitting())
	})
}

func TestPlaceOrder_Online_Success(t *testing.T) {
	h := newHarness(t, cartWithTotal("6200"))
	h.toReview(t, storefront.PaymentOnline)

	require.NoError(t, h.o.PlaceOrder(context.Background()))
	assert.True(t, h.o.Submitting(), "flag held while the gateway is open")
	assert.Equal(t, 1, h.gw.opens)
	assert.Equal(t, "sess-1", h.gw.opts.SessionID)
	assert.True(t, h.gw.opts.Amount.Equal(decimal.NewFromInt(6200)))
	assert.Equal(t, "9876543210", h.gw.opts.Prefill.Contact)
	assert.Equal(t, "asha@example.com", h.gw.opts.Prefill.Email)

	h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{SessionID: "sess-1", PaymentID: "pay_1", Signature: "ab"})

	assert.Equal(t, 1, h.api.verifies)
	assert.Equal(t, payment.StateDone, h.o.Attempt().State())
	assert.Equal(t, []string{"/order-success/ord-1"}, h.nav.all())
	assert.Equal(t, 1, h.c.refreshCount())
	assert.False(t, h.o.Submitting())

	// a duplicate callback is ignored
	h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{SessionID: "sess-1", PaymentID: "pay_1", Signature: "ab"})
	h.gw.handlers.OnDismiss()
	assert.Equal(t, 1, h.api.verifies)
	assert.Len(t, h.nav.all(), 1)
}

func TestPlaceOrder_Online_Dismissed(t *testing.T) {
	h := newHarness(t, cartWithTotal("6200"))
	h.toReview(t, storefront.PaymentOnline)

	require.NoError(t, h.o.PlaceOrder(context.Background()))
	h.gw.handlers.OnDismiss()

	assert.False(t, h.o.Submitting())
	assert.Empty(t, h.nav.all())
	assert.Equal(t, payment.StateCancelled, h.o.Attempt().State())
	last, _ := h.rec.Last()
	assert.Equal(t, notify.LevelInfo, last.Level)

	// completion after dismissal never verifies
	h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{SessionID: "sess-1", PaymentID: "pay_1"})
	assert.Equal(t, 0, h.api.verifies)
	assert.Empty(t, h.nav.all())

	// immediate retry is allowed
	require.NoError(t, h.o.PlaceOrder(context.Background()))
	assert.Equal(t, 2, h.gw.opens)
}

func TestPlaceOrder_Online_VerificationFails(t *testing.T) {
	h := newHarness(t, cartWithTotal("6200"))
	h.toReview(t, storefront.PaymentOnline)
	h.api.verifyErr = &api.Error{StatusCode: http.StatusBadRequest, Message: "Invalid payment signature"}

	require.NoError(t, h.o.PlaceOrder(context.Background()))
	attempt := h.o.Attempt()
	h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{SessionID: "sess-1", PaymentID: "pay_1"})

	assert.Equal(t, payment.StateFailed, attempt.State())
	assert.False(t, h.o.Submitting())
	assert.Empty(t, h.nav.all())
	last, _ := h.rec.Last()
	assert.Equal(t, notify.Notification{Level: notify.LevelError, Message: msgPaymentFailed}, last)

	// the failed attempt cannot be verified again
	h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{SessionID: "sess-1", PaymentID: "pay_1"})
	assert.Equal(t, 1, h.api.verifies)
}

func TestPlaceOrder_Online_SessionError(t *testing.T) {
	h := newHarness(t, cartWithTotal("6200"))
	h.toReview(t, storefront.PaymentOnline)
	h.api.sessionErr = &api.Error{StatusCode: http.StatusBadGateway, Message: api.FallbackMessage}

	require.Error(t, h.o.PlaceOrder(context.Background()))
	assert.False(t, h.o.Submitting())
	assert.Equal(t, 0, h.gw.opens)
	last, _ := h.rec.Last()
	assert.Equal(t, api.FallbackMessage, last.Message)
}

func TestPlaceOrder_Online_ConcurrentCallbacks(t *testing.T) {
	h := newHarness(t, cartWithTotal("6200"))
	h.toReview(t, storefront.PaymentOnline)
	require.NoError(t, h.o.PlaceOrder(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); h.gw.handlers.OnSuccess(storefront.PaymentConfirmation{PaymentID: "pay_1"}) }()
		go func() { defer wg.Done(); h.gw.handlers.OnDismiss() }()
	}
	wg.Wait()

	state := h.o.Attempt().State()
	assert.True(t, state == payment.StateDone || state == payment.StateCancelled, state.String())
	assert.LessOrEqual(t, h.api.verifies, 1)
	assert.False(t, h.o.Submitting())
}
