package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws/awsfake"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

type harness struct {
	dynamo *awsfake.Dynamo
	cw     *awsfake.CloudWatch
	orders *orders.Store
	idemp  *idempotency.Store
	proc   *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := awsfake.NewDynamo().
		CreateTable("orders", "order_id").
		CreateTable("idempotency", "idempotency_key")
	cw := &awsfake.CloudWatch{}
	ost := orders.NewStore(d, "orders")
	is := idempotency.NewStore(d, "idempotency", time.Hour)
	return &harness{
		dynamo: d,
		cw:     cw,
		orders: ost,
		idemp:  is,
		proc:   New(ost, is, aws.NewMetrics(cw, "Storefront")),
	}
}

func (h *harness) seed(t *testing.T, o orders.Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	require.NoError(t, err)
	require.NoError(t, h.dynamo.Put("orders", item))
}

func (h *harness) status(t *testing.T, id string) *orders.Order {
	t.Helper()
	o, err := h.orders.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func sqsEvent(t *testing.T, evs ...orders.Event) events.SQSEvent {
	t.Helper()
	var out events.SQSEvent
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		out.Records = append(out.Records, events.SQSMessage{MessageId: ev.OrderID, Body: string(b)})
	}
	return out
}

func order(id, method, payment string) orders.Order {
	return orders.Order{
		OrderID:       id,
		CustomerID:    "u1",
		Status:        orders.StatusPlaced,
		PaymentStatus: payment,
		PaymentMethod: method,
		Total:         "398.00",
		Currency:      "INR",
	}
}

func TestHandle_CODPlacedIsConfirmed(t *testing.T) {
	h := newHarness(t)
	h.seed(t, order("o1", "cod", orders.PaymentPending))

	err := h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "o1", PaymentMethod: "cod"}))
	require.NoError(t, err)

	o := h.status(t, "o1")
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Equal(t, 1, o.Attempts)
	assert.Equal(t, float64(1), h.cw.Total(MetricOrdersConfirmed))

	rec, err := h.idemp.Get(context.Background(), "evt:order.placed:o1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, idempotency.StatusDone, rec.Status)
}

func TestHandle_DuplicateDeliveryIsNoop(t *testing.T) {
	h := newHarness(t)
	h.seed(t, order("o1", "cod", orders.PaymentPending))
	ev := sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "o1"})

	require.NoError(t, h.proc.Handle(context.Background(), ev))
	require.NoError(t, h.proc.Handle(context.Background(), ev))

	assert.Equal(t, 1, h.status(t, "o1").Attempts)
	assert.Equal(t, float64(1), h.cw.Total(MetricOrdersConfirmed))
}

func TestHandle_OnlineWaitsForPayment(t *testing.T) {
	h := newHarness(t)
	h.seed(t, order("o2", "online", orders.PaymentPending))

	require.NoError(t, h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "o2"})))
	assert.Equal(t, orders.StatusPlaced, h.status(t, "o2").Status)

	err := h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPaid, OrderID: "o2"}))
	require.Error(t, err, "paid event before payment settles is retried")
	assert.Equal(t, orders.StatusPlaced, h.status(t, "o2").Status)
}

func TestHandle_PaidConfirms(t *testing.T) {
	h := newHarness(t)
	h.seed(t, order("o3", "online", orders.PaymentPaid))

	require.NoError(t, h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPaid, OrderID: "o3"})))
	assert.Equal(t, orders.StatusConfirmed, h.status(t, "o3").Status)
}

func TestHandle_AlreadyConfirmedIsSuccess(t *testing.T) {
	h := newHarness(t)
	o := order("o4", "cod", orders.PaymentPending)
	o.Status = orders.StatusShipped
	h.seed(t, o)

	require.NoError(t, h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "o4"})))
	assert.Equal(t, orders.StatusShipped, h.status(t, "o4").Status)
	assert.Equal(t, float64(0), h.cw.Total(MetricOrdersConfirmed))
}

func TestHandle_CancelledFails(t *testing.T) {
	h := newHarness(t)
	o := order("o5", "cod", orders.PaymentPending)
	o.Status = orders.StatusCancelled
	h.seed(t, o)

	err := h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "o5"}))
	assert.True(t, errors.Is(err, ErrOrderCancelled))

	rec, _ := h.idemp.Get(context.Background(), "evt:order.placed:o5")
	require.NotNil(t, rec)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)
}

func TestHandle_MissingOrderAndBadBody(t *testing.T) {
	h := newHarness(t)

	err := h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{Type: orders.EventPlaced, OrderID: "ghost"}))
	assert.Error(t, err)

	err = h.proc.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{{Body: "{not json"}}})
	assert.Error(t, err)

	err = h.proc.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{{Body: `{"type":"order.placed"}`}}})
	assert.Error(t, err)
}

func TestHandle_MetricsFailureDoesNotFailEvent(t *testing.T) {
	h := newHarness(t)
	h.cw.Err = errors.New("throttled")
	h.seed(t, order("o6", "cod", orders.PaymentPending))

	require.NoError(t, h.proc.Handle(context.Background(), sqsEvent(t, orders.Event{OrderID: "o6"})))
	assert.Equal(t, orders.StatusConfirmed, h.status(t, "o6").Status)
}
