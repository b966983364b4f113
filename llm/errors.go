package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Service error kinds.
const (
	KindAuth              = "auth"
	KindTimeout           = "timeout"
	KindRateLimit         = "rate_limit"
	KindMalformedResponse = "malformed_response"
	KindInvalidRequest    = "invalid_request"
	KindUnavailable       = "unavailable"
)

// ServiceError reports a failed call to the AI service.
type ServiceError struct {
	Provider   string
	Kind       string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *ServiceError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindUnavailable, KindMalformedResponse:
		return true
	}
	return false
}

func kindForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= http.StatusInternalServerError:
		return KindUnavailable
	case status >= http.StatusBadRequest:
		return KindInvalidRequest
	}
	return KindUnavailable
}

// transportError classifies an error raised before any response arrived.
func transportError(provider string, err error) *ServiceError {
	kind := KindUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &ServiceError{Provider: provider, Kind: kind, Err: err}
}
