package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// Order statuses
const (
	StatusPlaced    = string(storefront.OrderPlaced)
	StatusConfirmed = string(storefront.OrderConfirmed)
	StatusShipped   = string(storefront.OrderShipped)
	StatusDelivered = string(storefront.OrderDelivered)
	StatusCancelled = string(storefront.OrderCancelled)
)

// Payment statuses
const (
	PaymentPending = string(storefront.PaymentPending)
	PaymentPaid    = string(storefront.PaymentPaid)
	PaymentFailed  = string(storefront.PaymentFailed)
)

// Address is the delivery address snapshot taken at order time.
type Address struct {
	ID      string `dynamodbav:"id,omitempty"`
	Street  string `dynamodbav:"street"`
	City    string `dynamodbav:"city"`
	ZipCode string `dynamodbav:"zip_code"`
	Country string `dynamodbav:"country"`
	Type    string `dynamodbav:"type,omitempty"`
}

// Line is one ordered product. Price is a decimal string.
type Line struct {
	ProductID string `dynamodbav:"product_id"`
	Name      string `dynamodbav:"name"`
	Quantity  int    `dynamodbav:"quantity"`
	Price     string `dynamodbav:"price"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID          string    `dynamodbav:"order_id"` // PK
	CustomerID       string    `dynamodbav:"customer_id"`
	Status           string    `dynamodbav:"status"`         // placed | confirmed | shipped | delivered | cancelled
	PaymentStatus    string    `dynamodbav:"payment_status"` // pending | paid | failed
	PaymentMethod    string    `dynamodbav:"payment_method"`
	Total            string    `dynamodbav:"total"`
	Currency         string    `dynamodbav:"currency"`
	Phone            string    `dynamodbav:"phone"`
	Address          Address   `dynamodbav:"address"`
	Items            []Line    `dynamodbav:"items,omitempty"`
	IdempotencyKey   string    `dynamodbav:"idempotency_key,omitempty"`
	GatewaySessionID string    `dynamodbav:"gateway_session_id,omitempty"`
	PaymentID        string    `dynamodbav:"payment_id,omitempty"`
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
	Attempts         int       `dynamodbav:"attempts,omitempty"`
}

// View converts the stored order to its API shape.
func (o Order) View() storefront.Order {
	total, _ := decimal.NewFromString(o.Total)
	lines := make([]storefront.OrderLine, 0, len(o.Items))
	for _, l := range o.Items {
		price, _ := decimal.NewFromString(l.Price)
		lines = append(lines, storefront.OrderLine{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: price})
	}
	return storefront.Order{
		ID:            o.OrderID,
		Status:        storefront.OrderStatus(o.Status),
		PaymentStatus: storefront.PaymentStatus(o.PaymentStatus),
		PaymentMethod: storefront.PaymentMethod(o.PaymentMethod),
		Total:         total,
		Currency:      o.Currency,
		Phone:         o.Phone,
		Address: storefront.Address{
			ID:      o.Address.ID,
			Street:  o.Address.Street,
			City:    o.Address.City,
			ZipCode: o.Address.ZipCode,
			Country: o.Address.Country,
			Type:    o.Address.Type,
		},
		Items:     lines,
		CreatedAt: o.CreatedAt,
	}
}

// AddressFrom snapshots a profile address.
func AddressFrom(a storefront.Address) Address {
	return Address{ID: a.ID, Street: a.Street, City: a.City, ZipCode: a.ZipCode, Country: a.Country, Type: a.Type}
}

// Event types published to the orders queue.
const (
	EventPlaced = "order.placed"
	EventPaid   = "order.paid"
)

// Event is the payload sent from API -> SQS -> worker.
type Event struct {
	Type           string `json:"type"`
	OrderID        string `json:"order_id"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}
