package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

var (
	// ErrStatusMismatch is returned when a conditional transition finds the order in another state.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrIdempotencyKeyExists is returned when the transaction found the idempotency key already taken.
	ErrIdempotencyKeyExists = errors.New("idempotency key already exists")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in orders table (with ConditionExpression attribute_not_exists(order_id))
//
// idempotencyItem must marshal to a map carrying idempotency_key. order.OrderID must
// be set by the caller. Returns ErrIdempotencyKeyExists when the key was already used.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order Order, ttlWindow time.Duration) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	now := s.nowFunc()
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttlWindow).Unix())}
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("transaction canceled: %w", ErrIdempotencyKeyExists)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	var (
		out   []Order
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:                 &s.tableName,
			FilterExpression:          awsString("customer_id = :c"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: customerID}},
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET #s = :new, updated_at = :ua",
		"#s = :expected",
		map[string]string{"#s": "status"},
		map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: newStatus},
			":expected": &types.AttributeValueMemberS{Value: expectedStatus},
		})
}

// SetPaymentSession records the gateway session for an order still awaiting payment.
func (s *Store) SetPaymentSession(ctx context.Context, orderID, sessionID string) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET gateway_session_id = :sid, updated_at = :ua",
		"payment_status = :pending",
		nil,
		map[string]types.AttributeValue{
			":sid":     &types.AttributeValueMemberS{Value: sessionID},
			":pending": &types.AttributeValueMemberS{Value: PaymentPending},
		})
}

// MarkPaid moves payment pending -> paid for the given gateway session.
func (s *Store) MarkPaid(ctx context.Context, orderID, sessionID, paymentID string) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET payment_status = :paid, payment_id = :pid, updated_at = :ua",
		"payment_status = :pending AND gateway_session_id = :sid",
		nil,
		map[string]types.AttributeValue{
			":paid":    &types.AttributeValueMemberS{Value: PaymentPaid},
			":pid":     &types.AttributeValueMemberS{Value: paymentID},
			":pending": &types.AttributeValueMemberS{Value: PaymentPending},
			":sid":     &types.AttributeValueMemberS{Value: sessionID},
		})
}

// MarkPaymentFailed moves payment pending -> failed.
func (s *Store) MarkPaymentFailed(ctx context.Context, orderID string) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET payment_status = :failed, updated_at = :ua",
		"payment_status = :pending",
		nil,
		map[string]types.AttributeValue{
			":failed":  &types.AttributeValueMemberS{Value: PaymentFailed},
			":pending": &types.AttributeValueMemberS{Value: PaymentPending},
		})
}

// IncrementAttempts increases the attempts counter by 1 (useful for worker retries)
func (s *Store) IncrementAttempts(ctx context.Context, orderID string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          awsString("SET attempts = if_not_exists(attempts, :zero) + :inc, updated_at = :ua"),
		ConditionExpression:       awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":zero": &types.AttributeValueMemberN{Value: "0"}, ":inc": &types.AttributeValueMemberN{Value: "1"}, ":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	return nil
}

// conditionalUpdate applies update when condition holds on an existing order.
// updated_at is always set from :ua.
func (s *Store) conditionalUpdate(ctx context.Context, orderID, update, condition string, names map[string]string, values map[string]types.AttributeValue) error {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().Format(time.RFC3339)}
	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          &update,
		ConditionExpression:       awsString("attribute_exists(order_id) AND " + condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
