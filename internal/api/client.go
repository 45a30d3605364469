// Package api is the HTTP/JSON client for the storefront API. Every response is
// normalized to one canonical shape before it reaches the rest of the program.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxResponseBytes = 4 << 20 // 4MB
	// consecutive 5xx/transport failures before requests fail fast
	breakerThreshold = 5
)

// TokenSource yields the bearer credential attached to outgoing requests.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client talks to the storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *log.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the log entry used for request tracing.
func WithLogger(entry *log.Entry) Option {
	return func(c *Client) { c.logger = entry }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no client-side timeout: cancellation belongs to the caller's context
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:     log.WithField("component", "api"),
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name: "storefront-api",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return c
}

// isBreakerSuccess counts only outages against the breaker; business errors
// (4xx) and caller cancellations are healthy round trips.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}

// do sends one request and decodes the normalized response into out.
// keys name the envelope fields the payload may be wrapped in.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, header http.Header, keys ...string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	token := ""
	if c.tokens != nil {
		var err error
		if token, err = c.tokens.Token(); err != nil {
			return errors.Wrap(err, "read session token")
		}
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newError(resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &Error{StatusCode: http.StatusServiceUnavailable, Code: CodeCircuitOpen, Message: "The store is temporarily unavailable. Please try again shortly."}
		}
		c.logger.WithFields(log.Fields{"method": method, "path": path}).WithError(err).Debug("request failed")
		return err
	}

	if out == nil {
		return nil
	}
	return decode(data, out, keys...)
}
