package analysis

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies why a run did not succeed
type ErrorKind string

// Error kinds reported in failure outcomes
const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindContentBlocked      ErrorKind = "content_blocked"
	KindValidationFailure   ErrorKind = "validation_failure"
	KindRateLimited         ErrorKind = "rate_limited"
	KindProviderError       ErrorKind = "provider_error"
	KindCostEstimationError ErrorKind = "cost_estimation_error"
	KindCanceled            ErrorKind = "canceled"
)

// StatusClientClosedRequest is the non-standard status used when the caller went away.
const StatusClientClosedRequest = 499

// HTTPStatus returns the HTTP status code used to report this kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest, KindCostEstimationError:
		return http.StatusBadRequest
	case KindContentBlocked:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidationFailure, KindProviderError:
		return http.StatusBadGateway
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Failure describes a terminal non-success outcome
type Failure struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}
