package flow

import (
	"errors"
	"fmt"
)

// ErrStateNotFoundOrExpired is returned by Consume when a state token is
// missing, expired, or already consumed. The three cases are deliberately
// indistinguishable so callers (and attackers probing the callback
// endpoint) cannot learn flow-timing information from the error.
var ErrStateNotFoundOrExpired = errors.New("authorization state not found or expired")

// TokenExchangeError reports a token endpoint response that did not yield
// a usable token: a non-2xx status, a malformed success body, or a 2xx
// body with no access_token. It carries the raw response body because
// providers are not guaranteed to return JSON on error.
//
// Exchanges are never retried: authorization codes are single-use, so a
// retry would fail identically or trip the provider's replay rejection.
// Recovery always starts from a fresh authorization flow.
type TokenExchangeError struct {
	// Status is the HTTP status code of the token endpoint response.
	Status int

	// Body is the raw response body, kept verbatim for diagnostics.
	Body string

	// Message is a best-effort human-readable summary extracted from the
	// body's error shape (flat "error", "error_description", nested
	// "error.message", plain text).
	Message string
}

// Error implements the error interface.
func (e *TokenExchangeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("token exchange failed: status %d", e.Status)
}

// NetworkError reports a transport-level failure (DNS, TLS, timeout)
// reaching the token endpoint. It is distinguishable from a
// TokenExchangeError in logs even though callers typically handle both
// the same way.
type NetworkError struct {
	// Endpoint is the token endpoint URL that could not be reached.
	Endpoint string

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("token endpoint unreachable: %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
