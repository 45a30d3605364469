package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// FallbackMessage is shown when the server gave no usable message.
const FallbackMessage = "Something went wrong. Please try again."

// Error codes the client treats specially.
const (
	// CodeCircuitOpen marks a request refused locally because the breaker is open.
	// Nothing reached the server.
	CodeCircuitOpen = "circuit_open"
	// CodeRequestInProgress is returned while an earlier request with the same
	// idempotency key is still being processed.
	CodeRequestInProgress = "request_in_progress"
)

// Error is a non-2xx response from the storefront API.
type Error struct {
	StatusCode int
	// Message is the server-provided message, or FallbackMessage.
	Message string
	// Code is the machine-readable error code, when the server sends one.
	Code string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// OutcomeUnknown reports whether err leaves it open if the server acted on the
// request. Transport failures, a refusal by the open breaker, a request still in
// progress and gateway errors qualify. Other API errors are definite rejections.
func OutcomeUnknown(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusConflict:
		return apiErr.Code == CodeRequestInProgress
	}
	return apiErr.Code == CodeCircuitOpen
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		// error envelopes may also be wrapped in "data"
		if inner, ok := payload["data"]; ok {
			var nested map[string]json.RawMessage
			if json.Unmarshal(inner, &nested) == nil {
				for k, v := range nested {
					if _, exists := payload[k]; !exists {
						payload[k] = v
					}
				}
			}
		}
		e.Message = firstString(payload, "message", "error", "msg")
		if code := firstString(payload, "code"); code != "" {
			e.Code = code
		} else if errCode := firstString(payload, "error"); errCode != e.Message {
			e.Code = errCode
		}
	}

	if e.Message == "" {
		switch status {
		case http.StatusUnauthorized:
			e.Message = "Please sign in to continue."
		case http.StatusNotFound:
			e.Message = "Not found."
		default:
			e.Message = FallbackMessage
		}
	}
	return e
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// UserMessage turns any error returned by this package into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	return FallbackMessage
}
