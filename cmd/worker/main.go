package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/worker"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.LoadWorker()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(config.ParseLevel(cfg.LogLevel))

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.WithError(err).Fatal("failed to init aws clients")
	}

	proc := worker.New(
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.TTLWindow),
		aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
	)

	// RUN_LOCAL=true handles a single simulated SQS message and exits.
	if cfg.RunLocal {
		body := cfg.LocalBody
		if body == "" {
			body = `{"type":"order.placed","order_id":"local-order-1","idempotency_key":"local-key-1"}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		if err := proc.Handle(context.Background(), event); err != nil {
			log.WithError(err).Fatal("local handler error")
		}
		return
	}

	lambda.Start(proc.Handle)
}
