package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/payment"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

func (s *Server) createPaymentSession(c *gin.Context) {
	var req validation.PaymentSessionRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	o, ok := s.ownedOrder(c, req.OrderID)
	if !ok {
		return
	}
	if o.PaymentMethod != string(storefront.PaymentOnline) {
		fail(c, http.StatusBadRequest, "not_online", "This order is paid on delivery")
		return
	}
	if o.PaymentStatus != orders.PaymentPending {
		fail(c, http.StatusConflict, "already_paid", "This order has already been paid")
		return
	}

	sessionID := "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.orders.SetPaymentSession(c.Request.Context(), o.OrderID, sessionID); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			fail(c, http.StatusConflict, "already_paid", "This order has already been paid")
			return
		}
		s.internalError(c, "set payment session", err)
		return
	}

	amount, _ := decimal.NewFromString(o.Total)
	c.JSON(http.StatusCreated, gin.H{"session": storefront.PaymentSession{
		ID:       sessionID,
		OrderID:  o.OrderID,
		Amount:   amount,
		Currency: o.Currency,
		Key:      s.paymentKey,
	}})
}

func (s *Server) verifyPayment(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.VerifyPaymentRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	o, ok := s.ownedOrder(c, req.OrderID)
	if !ok {
		return
	}
	logger := s.logger.WithFields(log.Fields{"order_id": o.OrderID, "session_id": req.SessionID})

	if o.GatewaySessionID == "" || o.GatewaySessionID != req.SessionID {
		fail(c, http.StatusBadRequest, "session_mismatch", "Payment session does not match this order")
		return
	}
	if !payment.VerifySignature(s.secret, req.SessionID, req.PaymentID, req.Signature) {
		if err := s.orders.MarkPaymentFailed(ctx, o.OrderID); err != nil && !errors.Is(err, orders.ErrStatusMismatch) {
			logger.WithError(err).Warn("mark payment failed")
		}
		logger.Warn("payment signature rejected")
		fail(c, http.StatusBadRequest, "invalid_signature", "Payment verification failed")
		return
	}

	if err := s.orders.MarkPaid(ctx, o.OrderID, req.SessionID, req.PaymentID); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			fail(c, http.StatusConflict, "payment_processed", "This payment has already been processed")
			return
		}
		s.internalError(c, "mark paid", err)
		return
	}

	s.cartMu.Lock()
	if err := s.carts.Delete(ctx, o.CustomerID); err != nil {
		logger.WithError(err).Warn("clear cart after payment failed")
	}
	s.cartMu.Unlock()

	if err := s.publish(ctx, orders.EventPaid, *o, c.GetHeader("X-Request-Id")); err != nil {
		// the payment stands; the worker can be re-driven from the order record
		logger.WithError(err).Error("enqueue payment event failed")
	}

	paid, err := s.orders.Get(ctx, o.OrderID)
	if err == nil && paid == nil {
		err = errors.New("order vanished after payment")
	}
	if err != nil {
		s.internalError(c, "reload order", err)
		return
	}
	logger.Info("payment verified")
	c.JSON(http.StatusOK, gin.H{"order": paid.View()})
}
