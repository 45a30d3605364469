// Package config loads process configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Backend values for Server.Backend.
const (
	BackendAWS    = "aws"
	BackendMemory = "memory"
)

// Server configures cmd/api.
type Server struct {
	RunLocal bool   `envconfig:"RUN_LOCAL"`
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Backend selects DynamoDB/SQS (aws) or the in-process fakes (memory).
	Backend          string        `envconfig:"STOREFRONT_BACKEND" default:"aws"`
	IdempotencyTable string        `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`
	OrdersTable      string        `envconfig:"ORDERS_TABLE" default:"orders"`
	QueueURL         string        `envconfig:"ORDERS_QUEUE_URL"`
	TTLWindow        time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`

	// RedisAddr enables Redis-backed carts when set.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	PaymentKey    string `envconfig:"PAYMENT_KEY" default:"pk_test_sandbox"`
	PaymentSecret string `envconfig:"PAYMENT_SECRET" default:"sandbox-secret"`
	Currency      string `envconfig:"CURRENCY" default:"INR"`
}

// Worker configures cmd/worker.
type Worker struct {
	RunLocal         bool          `envconfig:"RUN_LOCAL"`
	LocalBody        string        `envconfig:"LOCAL_SQS_BODY"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	IdempotencyTable string        `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`
	OrdersTable      string        `envconfig:"ORDERS_TABLE" default:"orders"`
	TTLWindow        time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`
	MetricsNamespace string        `envconfig:"METRICS_NAMESPACE" default:"Storefront"`
}

// Client configures the storefront CLI.
type Client struct {
	APIURL        string `envconfig:"API_URL" default:"http://localhost:8080"`
	SessionFile   string `envconfig:"SESSION_FILE"`
	PaymentSecret string `envconfig:"PAYMENT_SECRET" default:"sandbox-secret"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadServer reads Server from the environment.
func LoadServer() (Server, error) {
	var c Server
	if err := envconfig.Process("", &c); err != nil {
		return c, errors.Wrap(err, "config: server")
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.Backend != BackendAWS && c.Backend != BackendMemory {
		return c, errors.Errorf("config: STOREFRONT_BACKEND must be %q or %q, got %q", BackendAWS, BackendMemory, c.Backend)
	}
	if c.Backend == BackendAWS && c.QueueURL == "" {
		return c, errors.New("config: ORDERS_QUEUE_URL is required with the aws backend")
	}
	return c, nil
}

// LoadWorker reads Worker from the environment.
func LoadWorker() (Worker, error) {
	var c Worker
	if err := envconfig.Process("", &c); err != nil {
		return c, errors.Wrap(err, "config: worker")
	}
	return c, nil
}

// LoadClient reads Client from STOREFRONT_* variables.
func LoadClient() (Client, error) {
	var c Client
	if err := envconfig.Process("storefront", &c); err != nil {
		return c, errors.Wrap(err, "config: client")
	}
	return c, nil
}

// ParseLevel maps a level name to logrus, defaulting to info.
func ParseLevel(name string) log.Level {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
