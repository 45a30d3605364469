package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// IdempotencyHeader carries the client's submission key.
const IdempotencyHeader = "Idempotency-Key"

// CODLimit is the highest total accepted for cash on delivery.
var CODLimit = decimal.NewFromInt(5000)

func (s *Server) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	idempKey := c.GetHeader(IdempotencyHeader)
	if idempKey == "" {
		fail(c, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
		return
	}

	// a replayed key answers from the stored outcome without touching the cart
	if rec, err := s.idemp.Get(ctx, idempKey); err != nil {
		s.internalError(c, "idempotency lookup", err)
		return
	} else if rec != nil {
		s.replay(c, rec)
		return
	}

	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	uid := userID(c)
	st, err := s.carts.Get(ctx, uid)
	if err != nil {
		s.internalError(c, "load cart", err)
		return
	}
	priced := s.price(st)
	method := storefront.PaymentMethod(req.PaymentMethod)
	switch {
	case priced.IsEmpty():
		fail(c, http.StatusBadRequest, "empty_cart", "Your cart is empty")
		return
	case priced.ShippingMethod == "":
		fail(c, http.StatusBadRequest, "shipping_required", "Please select a shipping method")
		return
	case method == storefront.PaymentCOD && priced.Total.GreaterThan(CODLimit):
		fail(c, http.StatusBadRequest, "cod_unavailable", "Cash on delivery is not available for orders above ₹5000")
		return
	}

	orderID := uuid.NewString()
	now := time.Now().UTC()
	order := orders.Order{
		OrderID:        orderID,
		CustomerID:     uid,
		Status:         orders.StatusPlaced,
		PaymentStatus:  orders.PaymentPending,
		PaymentMethod:  string(method),
		Total:          priced.Total.StringFixed(2),
		Currency:       s.currency,
		Phone:          req.Phone,
		Address:        orders.AddressFrom(req.Address),
		IdempotencyKey: idempKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	reserve := map[string]int{}
	for _, it := range priced.Items {
		order.Items = append(order.Items, orders.Line{
			ProductID: it.Product.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.PriceAtAdd.StringFixed(2),
		})
		reserve[it.Product.ID] += it.Quantity
	}
	if err := s.catalog.Reserve(reserve); err != nil {
		var se *stockError
		if errors.As(err, &se) {
			fail(c, http.StatusConflict, "insufficient_stock", stockMessage(se.name, se.stock))
			return
		}
		fail(c, http.StatusConflict, "unknown_product", "Some items are no longer available")
		return
	}

	// Attempt the transact write to create idempotency + order atomically
	idempItem := s.idemp.NewRecord(idempKey, orderID)
	err = s.orders.CreateWithIdempotencyTransaction(ctx, s.idemp.Table(), idempItem, order, s.idemp.TTL())
	if err != nil {
		s.catalog.Release(reserve)
		if !errors.Is(err, orders.ErrIdempotencyKeyExists) {
			s.internalError(c, "create order", err)
			return
		}
		// lost a race with a concurrent submission of the same key
		rec, getErr := s.idemp.Get(ctx, idempKey)
		if getErr != nil || rec == nil {
			s.internalError(c, "idempotency lookup", fmt.Errorf("transaction failed without record: %w", err))
			return
		}
		s.replay(c, rec)
		return
	}

	logger := s.logger.WithFields(log.Fields{"order_id": orderID, "idempotency_key": idempKey, "payment_method": method})

	// Cash orders are settled by the worker, so the cart empties now. Online
	// orders keep the cart until the payment is verified.
	if method == storefront.PaymentCOD {
		if err := s.carts.Delete(ctx, uid); err != nil {
			logger.WithError(err).Warn("clear cart after order failed")
		}
	}

	if err := s.publish(ctx, orders.EventPlaced, order, c.GetHeader("X-Request-Id")); err != nil {
		// mark idempotency failed so client can retry
		_ = s.idemp.MarkFailed(ctx, idempKey, fmt.Sprintf("sqs_send_failed: %v", err))
		logger.WithError(err).Error("enqueue order event failed")
		fail(c, http.StatusInternalServerError, "enqueue_failed", "We could not place your order. Please try again.")
		return
	}

	body := gin.H{"order": order.View()}
	responseBody, _ := json.Marshal(body)
	if err := s.idemp.MarkDone(ctx, idempKey, string(responseBody), http.StatusCreated); err != nil {
		logger.WithError(err).Warn("mark idempotency done failed")
	}

	logger.Info("order placed")
	c.Header("Location", fmt.Sprintf("/api/orders/%s", orderID))
	c.JSON(http.StatusCreated, body)
}

// replay answers a repeated Idempotency-Key from the stored record.
func (s *Server) replay(c *gin.Context, rec *idempotency.IdempotencyRecord) {
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		o, err := s.orders.Get(c.Request.Context(), rec.OrderID)
		if err != nil || o == nil {
			s.internalError(c, "replay order", fmt.Errorf("order %s: %v", rec.OrderID, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o.View()})
	case idempotency.StatusInProgress:
		fail(c, http.StatusConflict, "request_in_progress", "Your order is already being processed")
	case idempotency.StatusFailed:
		fail(c, http.StatusInternalServerError, "previous_attempt_failed", "We could not place your order. Please try again.")
	default:
		fail(c, http.StatusInternalServerError, "unknown_idempotency_status", "Something went wrong. Please try again.")
	}
}

func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListByCustomer(c.Request.Context(), userID(c))
	if err != nil {
		s.internalError(c, "list orders", err)
		return
	}
	views := make([]storefront.Order, 0, len(list))
	for _, o := range list {
		views = append(views, o.View())
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

func (s *Server) getOrder(c *gin.Context) {
	o, ok := s.ownedOrder(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o.View()})
}

// ownedOrder loads an order of the calling user, writing a 404 otherwise.
func (s *Server) ownedOrder(c *gin.Context, id string) (*orders.Order, bool) {
	o, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "get order", err)
		return nil, false
	}
	if o == nil || o.CustomerID != userID(c) {
		fail(c, http.StatusNotFound, "not_found", "Order not found")
		return nil, false
	}
	return o, true
}

func (s *Server) publish(ctx context.Context, eventType string, o orders.Order, correlationID string) error {
	if s.publisher == nil {
		return nil
	}
	ev := orders.Event{
		Type:           eventType,
		OrderID:        o.OrderID,
		PaymentMethod:  o.PaymentMethod,
		IdempotencyKey: o.IdempotencyKey,
		CorrelationID:  correlationID,
	}
	return s.publisher.SendJSON(ctx, ev, map[string]string{
		"event_type":      eventType,
		"order_id":        o.OrderID,
		"idempotency_key": o.IdempotencyKey,
		"correlation_id":  correlationID,
	})
}
