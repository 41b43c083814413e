package llm

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is returned when the provider throttles the request
type RateLimitError struct {
	Provider   Provider
	RetryAfter time.Duration // zero when the provider gave no hint
	Message    string
	Cause      error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s rate limit exceeded", e.Provider)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// ProviderError represents a transport or model-service failure
type ProviderError struct {
	Provider   Provider
	StatusCode int // zero for transport failures
	Retryable  bool
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether another attempt may succeed where err failed.
func IsRetryable(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// retryableStatus reports whether an HTTP status signals a transient failure
func retryableStatus(code int) bool {
	return code == 408 || code >= 500
}
