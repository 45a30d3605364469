package idempotency

import "time"

// Record states. A checkout submission starts IN_PROGRESS inside the order
// transaction and becomes DONE once the order event is queued; worker event
// claims follow the same path.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// IdempotencyRecord is one claimed key: a client Idempotency-Key header for
// order creation, or "evt:<type>:<order id>" for a worker event.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // replayed verbatim for DONE
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // 201 for created orders
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // DynamoDB TTL, epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}
