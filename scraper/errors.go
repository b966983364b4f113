package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/go-scrape-cars/models"
)

// Fetch error kinds.
const (
	KindTimeout     = "timeout"
	KindConnection  = "connection"
	KindForbidden   = "forbidden"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindServer      = "server"
	KindParse       = "parse"
	KindSiteChanged = "site_changed"
	KindCanceled    = "canceled"
	KindOther       = "other"
)

var (
	// ErrNotHTML is returned when the search page is not an HTML document.
	ErrNotHTML = errors.New("search response is not html")
	// ErrNoListingData is returned when detail pages were fetched but none carried listing data.
	ErrNoListingData = errors.New("detail pages carried no listing data")
)

// FetchError reports why a sub-query produced no listings.
type FetchError struct {
	Query models.SubQuery
	Kind  string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Query, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrStatus indicates a non-success HTTP status.
type ErrStatus struct {
	StatusCode int
	Err        error
}

func (e ErrStatus) Error() string {
	return fmt.Errorf("http %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrStatus) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return KindConnection
	}
	var status ErrStatus
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusForbidden:
			return KindForbidden
		case status.StatusCode == http.StatusNotFound:
			return KindNotFound
		case status.StatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case status.StatusCode >= http.StatusInternalServerError:
			return KindServer
		}
	}
	if errors.Is(err, ErrNotHTML) {
		return KindParse
	}
	if errors.Is(err, ErrNoListingData) {
		return KindSiteChanged
	}
	return KindOther
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = errors.New(http.StatusText(statusCode))
		}
		return ErrStatus{StatusCode: statusCode, Err: wrapped}
	}

	return err
}

// retryable reports whether a classified error is worth another attempt.
func retryable(err error) bool {
	switch errorTypeLabel(err) {
	case KindTimeout, KindConnection, KindRateLimited, KindServer:
		return true
	}
	return false
}

// newFetchError wraps err with the sub-query and its kind label.
func newFetchError(q models.SubQuery, err error) *FetchError {
	return &FetchError{Query: q, Kind: errorTypeLabel(err), Err: err}
}
