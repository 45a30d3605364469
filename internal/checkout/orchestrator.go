// Package checkout drives the two-step checkout: choose a delivery address and
// phone, then review and place the order with cash on delivery or a hosted
// payment gateway.
package checkout

import (
	"context"
	"strings"
	"sync"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/notify"
	"github.com/imrishuroy/go-storefront-checkout/internal/payment"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// CODLimit is the highest order total that may be paid on delivery.
var CODLimit = decimal.NewFromInt(5000)

// Step of the checkout flow.
type Step int

const (
	StepAddress Step = iota
	StepReview
)

func (s Step) String() string {
	if s == StepReview {
		return "review"
	}
	return "address"
}

// API is the part of the storefront API checkout talks to.
type API interface {
	GetProfile(ctx context.Context) (*storefront.Profile, error)
	CreateAddress(ctx context.Context, addr storefront.Address) (*storefront.Address, error)
	CreateOrder(ctx context.Context, req storefront.OrderRequest, idempotencyKey string) (*storefront.Order, error)
	CreatePaymentSession(ctx context.Context, orderID string) (*storefront.PaymentSession, error)
	VerifyPayment(ctx context.Context, conf storefront.PaymentConfirmation) (*storefront.Order, error)
}

// Cart is the cart store as seen from checkout. cart.Store satisfies it.
type Cart interface {
	Snapshot() storefront.Cart
	Refresh(ctx context.Context) (storefront.Cart, error)
	ShippingMethods(ctx context.Context) ([]storefront.ShippingMethod, error)
	ApplyShipping(ctx context.Context, methodID string) error
}

// Navigator moves the user to another view.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// OrderSuccessPath is the view shown once an order is placed or paid.
func OrderSuccessPath(orderID string) string { return "/order-success/" + orderID }

// Config wires the orchestrator's collaborators.
type Config struct {
	API       API
	Cart      Cart
	Gateway   payment.Gateway
	Navigator Navigator
	Notifier  notify.Notifier

	// Theme is passed through to the gateway.
	Theme string
}

// Orchestrator holds the state of one checkout session.
type Orchestrator struct {
	api      API
	cart     Cart
	gateway  payment.Gateway
	nav      Navigator
	notifier notify.Notifier
	validate *validatorv10.Validate
	logger   *log.Entry
	theme    string
	newKey   func() string

	mu         sync.Mutex
	step       Step
	profile    storefront.Profile
	addresses  []storefront.Address
	selected   string
	phone      string
	method     storefront.PaymentMethod
	submitting bool
	orderKey   string
	keyFor     string
	attempt    *payment.Attempt
}

// New returns an orchestrator at the address step.
func New(cfg Config) *Orchestrator {
	n := cfg.Notifier
	if n == nil {
		n = notify.Discard
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Orchestrator{
		api:      cfg.API,
		cart:     cfg.Cart,
		gateway:  cfg.Gateway,
		nav:      nav,
		notifier: n,
		validate: validation.New(),
		logger:   log.WithField("component", "checkout"),
		theme:    cfg.Theme,
		newKey:   uuid.NewString,
	}
}

// Step returns the current step.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Submitting reports whether an order submission is outstanding, including a
// payment that is open in the gateway.
func (o *Orchestrator) Submitting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.submitting
}

// Attempt returns the most recent online payment attempt, or nil.
func (o *Orchestrator) Attempt() *payment.Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// Addresses returns the known profile addresses.
func (o *Orchestrator) Addresses() []storefront.Address {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]storefront.Address(nil), o.addresses...)
}

// SelectedAddress returns the chosen address.
func (o *Orchestrator) SelectedAddress() (storefront.Address, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selectedLocked()
}

func (o *Orchestrator) selectedLocked() (storefront.Address, bool) {
	if o.selected == "" {
		return storefront.Address{}, false
	}
	for _, a := range o.addresses {
		if a.ID == o.selected {
			return a, true
		}
	}
	return storefront.Address{}, false
}

// Phone returns the phone entered so far.
func (o *Orchestrator) Phone() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phone
}

// PaymentMethod returns the selected payment method.
func (o *Orchestrator) PaymentMethod() storefront.PaymentMethod {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.method
}

// LoadAddresses fetches the profile and preselects its default address and phone.
func (o *Orchestrator) LoadAddresses(ctx context.Context) error {
	p, err := o.api.GetProfile(ctx)
	if err != nil {
		notify.Error(o.notifier, api.UserMessage(err))
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.profile = *p
	o.addresses = append([]storefront.Address(nil), p.Addresses...)
	if _, ok := o.selectedLocked(); !ok {
		o.selected = ""
		if def, ok := p.DefaultAddress(); ok {
			o.selected = def.ID
		}
	}
	if o.phone == "" {
		o.phone = p.Phone
	}
	return nil
}

// SelectAddress chooses one of the known addresses.
func (o *Orchestrator) SelectAddress(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, a := range o.addresses {
		if a.ID == id {
			o.selected = id
			return nil
		}
	}
	return errors.Wrap(ErrUnknownAddress, id)
}

// AddAddress validates addr, saves it to the profile and selects it.
func (o *Orchestrator) AddAddress(ctx context.Context, addr storefront.Address) (storefront.Address, error) {
	if err := o.validate.Struct(addr); err != nil {
		notify.Error(o.notifier, validation.Describe(err))
		return storefront.Address{}, errors.Wrap(err, "checkout: invalid address")
	}

	created, err := o.api.CreateAddress(ctx, addr)
	if err != nil {
		notify.Error(o.notifier, api.UserMessage(err))
		return storefront.Address{}, err
	}

	o.mu.Lock()
	o.addresses = append(o.addresses, *created)
	o.selected = created.ID
	o.mu.Unlock()

	notify.Success(o.notifier, msgAddressSaved)
	return *created, nil
}

// SetPhone records the contact phone.
func (o *Orchestrator) SetPhone(phone string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phone = strings.TrimSpace(phone)
}

// Continue moves from the address step to review.
func (o *Orchestrator) Continue() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.selectedLocked(); !ok {
		return o.reject(ErrNoAddress, msgNoAddress)
	}
	if !validation.ValidPhone(o.phone) {
		return o.reject(ErrInvalidPhone, msgInvalidPhone)
	}
	o.step = StepReview
	return nil
}

// Back returns to the address step. Always allowed.
func (o *Orchestrator) Back() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.step = StepAddress
}

// CODAvailable reports whether cash on delivery may be chosen for the current cart.
func (o *Orchestrator) CODAvailable() bool {
	return o.cart.Snapshot().Total.LessThanOrEqual(CODLimit)
}

// SelectPayment chooses the payment method.
func (o *Orchestrator) SelectPayment(m storefront.PaymentMethod) error {
	if !m.Valid() {
		return o.reject(ErrInvalidPaymentMethod, msgNoPayment)
	}
	if m == storefront.PaymentCOD && !o.CODAvailable() {
		return o.reject(ErrCODUnavailable, msgCODUnavailable)
	}
	o.mu.Lock()
	o.method = m
	o.mu.Unlock()
	return nil
}

// NeedsShipping reports whether a shipping method must be chosen before submitting.
func (o *Orchestrator) NeedsShipping() bool {
	return o.cart.Snapshot().ShippingMethod == ""
}

// ShippingOptions lists the methods offered when NeedsShipping is true.
func (o *Orchestrator) ShippingOptions(ctx context.Context) ([]storefront.ShippingMethod, error) {
	return o.cart.ShippingMethods(ctx)
}

// ApplyShipping selects a shipping method through the cart store.
func (o *Orchestrator) ApplyShipping(ctx context.Context, methodID string) error {
	return o.cart.ApplyShipping(ctx, methodID)
}

// PlaceOrder submits the order. Cash on delivery completes before returning;
// online payment returns once the gateway is open and finishes in its callbacks.
// While a submission is outstanding further calls return ErrSubmitting.
func (o *Orchestrator) PlaceOrder(ctx context.Context) error {
	req, key, err := o.begin()
	if err != nil {
		return err
	}
	logger := o.logger.WithFields(log.Fields{"payment_method": req.PaymentMethod, "idempotency_key": key})

	order, err := o.api.CreateOrder(ctx, req, key)
	if err != nil {
		if !api.OutcomeUnknown(err) {
			o.forgetKey()
		}
		logger.WithError(err).Warn("create order failed")
		return o.fail(err)
	}
	o.forgetKey()
	logger = logger.WithField("order_id", order.ID)
	logger.Info("order created")

	// a replayed order keeps the method it was created with
	method := order.PaymentMethod
	if method == "" {
		method = req.PaymentMethod
	}
	if method != req.PaymentMethod {
		logger.WithField("order_payment_method", method).Warn("order replayed with a different payment method")
	}

	if method == storefront.PaymentCOD || order.PaymentStatus == storefront.PaymentPaid {
		o.refreshCart(ctx)
		o.finish()
		notify.Success(o.notifier, msgOrderPlaced)
		o.nav.Navigate(OrderSuccessPath(order.ID))
		return nil
	}

	sess, err := o.api.CreatePaymentSession(ctx, order.ID)
	if err != nil {
		logger.WithError(err).Warn("create payment session failed")
		return o.fail(err)
	}

	attempt := payment.NewAttempt(order.ID, sess.ID)
	o.mu.Lock()
	o.attempt = attempt
	prefill := payment.Prefill{Name: o.profile.Name, Email: o.profile.Email, Contact: o.phone}
	o.mu.Unlock()

	// callbacks outlive the submitting call
	cbCtx := context.WithoutCancel(ctx)
	err = o.gateway.Open(ctx, payment.CheckoutOptions{
		Key:       sess.Key,
		SessionID: sess.ID,
		OrderID:   order.ID,
		Amount:    sess.Amount,
		Currency:  sess.Currency,
		Prefill:   prefill,
		Theme:     o.theme,
	}, payment.Handlers{
		OnSuccess: func(conf storefront.PaymentConfirmation) { o.complete(cbCtx, attempt, conf) },
		OnDismiss: func() { o.dismiss(attempt) },
	})
	if err != nil {
		_ = attempt.Cancel()
		logger.WithError(err).Warn("open gateway failed")
		return o.fail(err)
	}
	logger.WithField("session_id", sess.ID).Info("payment gateway opened")
	return nil
}

// begin validates the review state and takes the in-flight flag.
func (o *Orchestrator) begin() (storefront.OrderRequest, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.submitting {
		return storefront.OrderRequest{}, "", ErrSubmitting
	}
	if o.step != StepReview {
		return storefront.OrderRequest{}, "", ErrNotInReview
	}

	c := o.cart.Snapshot()
	if c.IsEmpty() {
		return storefront.OrderRequest{}, "", o.reject(ErrEmptyCart, msgEmptyCart)
	}
	if !validation.ValidPhone(o.phone) {
		return storefront.OrderRequest{}, "", o.reject(ErrInvalidPhone, msgInvalidPhone)
	}
	if c.ShippingMethod == "" {
		return storefront.OrderRequest{}, "", o.reject(ErrNoShippingMethod, msgNoShipping)
	}
	addr, ok := o.selectedLocked()
	if !ok {
		return storefront.OrderRequest{}, "", o.reject(ErrNoAddress, msgNoAddress)
	}
	if !o.method.Valid() {
		return storefront.OrderRequest{}, "", o.reject(ErrInvalidPaymentMethod, msgNoPayment)
	}
	if o.method == storefront.PaymentCOD && c.Total.GreaterThan(CODLimit) {
		return storefront.OrderRequest{}, "", o.reject(ErrCODUnavailable, msgCODUnavailable)
	}

	// a key survives only submissions whose outcome is unknown, and only for
	// the same address, phone and method
	req := storefront.OrderRequest{Address: addr, Phone: o.phone, PaymentMethod: o.method}
	if fp := requestFingerprint(req); o.orderKey == "" || o.keyFor != fp {
		o.orderKey = o.newKey()
		o.keyFor = fp
	}
	o.submitting = true
	return req, o.orderKey, nil
}

func requestFingerprint(req storefront.OrderRequest) string {
	return strings.Join([]string{req.Address.ID, req.Phone, string(req.PaymentMethod)}, "|")
}

func (o *Orchestrator) complete(ctx context.Context, attempt *payment.Attempt, conf storefront.PaymentConfirmation) {
	logger := o.logger.WithFields(log.Fields{"order_id": attempt.OrderID, "session_id": attempt.SessionID})
	if err := attempt.BeginVerify(); err != nil {
		logger.WithField("state", attempt.State()).Debug("ignoring payment completion")
		return
	}
	if conf.OrderID == "" {
		conf.OrderID = attempt.OrderID
	}
	if conf.SessionID == "" {
		conf.SessionID = attempt.SessionID
	}

	if _, err := o.api.VerifyPayment(ctx, conf); err != nil {
		_ = attempt.Finish(err)
		logger.WithError(err).Error("payment verification failed")
		o.finish()
		notify.Error(o.notifier, msgPaymentFailed)
		return
	}

	o.refreshCart(ctx)
	_ = attempt.Finish(nil)
	o.finish()
	logger.Info("payment verified")
	notify.Success(o.notifier, msgPaymentSuccess)
	o.nav.Navigate(OrderSuccessPath(attempt.OrderID))
}

func (o *Orchestrator) dismiss(attempt *payment.Attempt) {
	if err := attempt.Cancel(); err != nil {
		return
	}
	o.logger.WithField("order_id", attempt.OrderID).Info("payment dismissed")
	o.finish()
	notify.Info(o.notifier, msgPaymentDismiss)
}

// refreshCart reloads the cart after the server cleared it. A failure here does
// not undo the order.
func (o *Orchestrator) refreshCart(ctx context.Context) {
	if _, err := o.cart.Refresh(ctx); err != nil {
		o.logger.WithError(err).Warn("cart refresh after order failed")
	}
}

func (o *Orchestrator) fail(err error) error {
	o.finish()
	notify.Error(o.notifier, api.UserMessage(err))
	return err
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.submitting = false
	o.mu.Unlock()
}

func (o *Orchestrator) forgetKey() {
	o.mu.Lock()
	o.orderKey = ""
	o.keyFor = ""
	o.mu.Unlock()
}

// reject notifies a local validation failure. It may run under o.mu, so notifiers
// must not call back into the orchestrator.
func (o *Orchestrator) reject(err error, msg string) error {
	notify.Error(o.notifier, msg)
	return err
}
