package errorsx

import (
	"context"
	"errors"
	"net/http"
)

// Transient reports whether retrying later may succeed: provider rate limits,
// an open circuit or a deadline.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch Reason(err) {
	case ReasonSTTRateLimit, ReasonTTSRateLimit, ReasonLLMRateLimit, ReasonLLMCircuitOpen:
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code returned by the REST API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Transient(err):
		return http.StatusServiceUnavailable
	}
	switch Reason(err) {
	case ReasonTransportDecode:
		return http.StatusBadRequest
	case ReasonConfigInvalid, ReasonProviderUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
