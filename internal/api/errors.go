package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// ErrFetchFailed is matched by HTTP failures that are not worth retrying:
// every non-200 status except 502.
var ErrFetchFailed = errors.New("fetch failed")

// maxErrorBody bounds how much of a response body ends up in error messages.
const maxErrorBody = 512

// APIError represents an error from the Kalshi API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if len(body) == 0 {
		return fmt.Sprintf("kalshi api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("kalshi api error %d: %s: %s", e.StatusCode, e.Message, body)
}

// IsRetryable reports whether the status is transient. Only 502 qualifies;
// Kalshi's gateway returns it under load and the next attempt usually works.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusBadGateway
}

// Is lets errors.Is(err, ErrFetchFailed) match non-retryable statuses.
func (e *APIError) Is(target error) bool {
	return target == ErrFetchFailed && !e.IsRetryable()
}

// IsTransient classifies an error from a single request attempt. HTTP 502,
// timeouts and connection-level failures are transient; cancellation, other
// statuses and malformed bodies are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// Anything else the transport reports before a response arrived.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
