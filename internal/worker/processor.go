// Package worker consumes order events from SQS and advances the order lifecycle.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// MetricOrdersConfirmed counts orders moved to confirmed.
const MetricOrdersConfirmed = "OrdersConfirmed"

// ErrOrderCancelled is returned for events about an order that was cancelled
// before it could be confirmed. Lambda retries and finally dead-letters them.
var ErrOrderCancelled = errors.New("order is cancelled")

// Processor handles SQS messages and performs order lifecycle transitions.
type Processor struct {
	orderStore *orders.Store
	idempStore *idempotency.Store
	metrics    *aws.Metrics // nil disables metrics
	logger     *log.Entry
}

// New builds a processor over existing stores.
func New(orderStore *orders.Store, idempStore *idempotency.Store, metrics *aws.Metrics) *Processor {
	return &Processor{
		orderStore: orderStore,
		idempStore: idempStore,
		metrics:    metrics,
		logger:     log.WithField("component", "worker"),
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries the batch; repeated failures go to the DLQ.
			p.logger.WithError(err).WithField("message_id", rec.MessageId).Error("process message failed")
			return err
		}
	}
	return nil
}

// EventKey is the idempotency key under which an event's handling is recorded.
func EventKey(ev orders.Event) string {
	return "evt:" + ev.Type + ":" + ev.OrderID
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev orders.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.OrderID == "" {
		return errors.New("invalid message body: missing order_id")
	}
	if ev.Type == "" {
		ev.Type = orders.EventPlaced
	}

	logger := p.logger.WithFields(log.Fields{
		"event":           ev.Type,
		"order_id":        ev.OrderID,
		"idempotency_key": ev.IdempotencyKey,
		"correlation_id":  ev.CorrelationID,
	})
	logger.Info("received order event")

	// Step 1: claim the event so redeliveries are no-ops once it is done
	key := EventKey(ev)
	created, err := p.idempStore.CreateIfNotExists(ctx, key, ev.OrderID)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !created {
		prev, err := p.idempStore.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load event record: %w", err)
		}
		if prev != nil && prev.Status == idempotency.StatusDone {
			logger.Info("duplicate event, already handled")
			return nil
		}
		// an earlier delivery died half way; carry on
	}

	// Step 2: read the current order
	order, err := p.orderStore.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		_ = p.idempStore.MarkFailed(ctx, key, "order not found")
		return fmt.Errorf("order not found: %s", ev.OrderID)
	}
	if err := p.orderStore.IncrementAttempts(ctx, ev.OrderID); err != nil {
		return err
	}

	// Step 3: decide. Online orders wait for their payment event.
	switch {
	case ev.Type == orders.EventPaid && order.PaymentStatus != orders.PaymentPaid:
		return fmt.Errorf("order=%s payment is %s", ev.OrderID, order.PaymentStatus)
	case ev.Type == orders.EventPlaced && order.PaymentMethod != string(storefront.PaymentCOD):
		logger.Debug("online order awaits payment")
		return p.done(ctx, key, order.OrderID, order.Status)
	case ev.Type != orders.EventPlaced && ev.Type != orders.EventPaid:
		logger.Warn("unknown event type")
		return p.done(ctx, key, order.OrderID, order.Status)
	}

	// Step 4: placed -> confirmed (idempotent)
	err = p.orderStore.UpdateStatus(ctx, ev.OrderID, orders.StatusPlaced, orders.StatusConfirmed)
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, getErr := p.orderStore.Get(ctx, ev.OrderID)
		if getErr != nil || current == nil {
			return fmt.Errorf("reload order=%s: %v", ev.OrderID, getErr)
		}
		switch current.Status {
		case orders.StatusConfirmed, orders.StatusShipped, orders.StatusDelivered:
			logger.WithField("status", current.Status).Info("order already confirmed")
			return p.done(ctx, key, current.OrderID, current.Status)
		case orders.StatusCancelled:
			_ = p.idempStore.MarkFailed(ctx, key, "order cancelled")
			return errors.Wrapf(ErrOrderCancelled, "order=%s", ev.OrderID)
		default:
			return fmt.Errorf("unexpected status for order=%s: %s", ev.OrderID, current.Status)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update status to confirmed: %w", err)
	}

	if p.metrics != nil {
		dims := map[string]string{"PaymentMethod": order.PaymentMethod}
		if err := p.metrics.Count(ctx, MetricOrdersConfirmed, 1, dims); err != nil {
			logger.WithError(err).Warn("publish metric failed")
		}
	}

	logger.Info("order confirmed")
	return p.done(ctx, key, order.OrderID, orders.StatusConfirmed)
}

func (p *Processor) done(ctx context.Context, key, orderID, status string) error {
	response := fmt.Sprintf(`{"order_id":%q,"status":%q}`, orderID, status)
	if err := p.idempStore.MarkDone(ctx, key, response, 200); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}
	return nil
}
