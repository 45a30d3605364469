package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws/awsfake"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/sandbox"
	"github.com/imrishuroy/go-storefront-checkout/internal/worker"
)

// buildServerConfig wires stores for the selected backend. The memory backend
// keeps tables in process and feeds published events straight to a worker.
func buildServerConfig(ctx context.Context, cfg config.Server) (sandbox.Config, func(), error) {
	out := sandbox.Config{
		PaymentKey:    cfg.PaymentKey,
		PaymentSecret: cfg.PaymentSecret,
		Currency:      cfg.Currency,
	}
	closeFn := func() {}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return out, closeFn, errors.Wrapf(err, "ping redis %s", cfg.RedisAddr)
		}
		out.Carts = sandbox.NewRedisCarts(rdb)
		closeFn = func() { _ = rdb.Close() }
	}

	switch cfg.Backend {
	case config.BackendMemory:
		dynamo := awsfake.NewDynamo().
			CreateTable(cfg.OrdersTable, "order_id").
			CreateTable(cfg.IdempotencyTable, "idempotency_key")
		out.Orders = orders.NewStore(dynamo, cfg.OrdersTable)
		out.Idempotency = idempotency.NewStore(dynamo, cfg.IdempotencyTable, cfg.TTLWindow)

		proc := worker.New(out.Orders, out.Idempotency, nil)
		queue := &awsfake.SQS{OnSend: func(in sqs.SendMessageInput) {
			msg := events.SQSMessage{MessageId: "local", Body: *in.MessageBody}
			go func() {
				if err := proc.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{msg}}); err != nil {
					log.WithError(err).Warn("in-process worker")
				}
			}()
		}}
		out.Publisher = aws.NewPublisher(queue, "memory://orders")
		log.Info("using in-memory backend")

	default:
		clients, err := aws.NewAWSClients(ctx)
		if err != nil {
			return out, closeFn, errors.Wrap(err, "init aws clients")
		}
		out.Orders = orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
		out.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.TTLWindow)
		out.Publisher = aws.NewPublisher(clients.SQS, cfg.QueueURL)
	}
	return out, closeFn, nil
}
