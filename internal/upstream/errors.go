package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrTransient marks an error as retryable when wrapped with %w.
var ErrTransient = errors.New("transient upstream failure")

// APIError is returned when an upstream responds with status >= 400.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256]
	}
	if body == "" {
		return fmt.Sprintf("%s api error (%d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, body)
}

// Transient reports whether the status class is worth retrying.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// DecodeError is returned when an upstream body cannot be parsed as JSON.
// It is distinct from APIError so callers never mistake a mangled payload
// for an empty success.
type DecodeError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *DecodeError) Error() string {
	raw := strings.TrimSpace(e.Raw)
	if len(raw) > 128 {
		raw = raw[:128]
	}
	return fmt.Sprintf("%s response decode failed: %v (raw: %s)", e.Provider, e.Err, raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransient classifies failures for the retry policy: network and timeout
// classes retry, application errors surface immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
