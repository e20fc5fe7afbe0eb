package client

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusTokenExpired is the backend's distinguished status for an expired
// credential. Together with CodeExpired it is the only refresh trigger.
const StatusTokenExpired = 419

// CodeExpired is the body code sent with StatusTokenExpired.
const CodeExpired = "expired"

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

var (
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network error")
	// ErrNoSession is returned by Refresh when there is no refresh credential.
	ErrNoSession = errors.New("no active session")
)

// NetworkError wraps a transport failure: no HTTP response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// RefreshError is an expired rejection whose refresh failed. It unwraps to
// the original rejection; Refresh holds the refresh failure.
type RefreshError struct {
	Err     error
	Refresh error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%v (refresh failed: %v)", e.Err, e.Refresh)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// IsRefreshRejected reports whether err carries a refresh the server refused
// as unauthorized. Only then is the refresh credential known to be dead.
func IsRefreshRejected(err error) bool {
	var refreshErr *RefreshError
	return errors.As(err, &refreshErr) && IsUnauthorized(refreshErr.Refresh)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsExpired reports the distinguished "credential expired" rejection.
func IsExpired(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == StatusTokenExpired && httpErr.Code == CodeExpired
	}
	return false
}

// IsUnauthorized reports any authorization failure, expired or not.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	switch httpErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, StatusTokenExpired:
		return true
	}
	return false
}

// IsClientError reports a 4xx response that is not an authorization failure.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && !IsUnauthorized(err)
}

// IsServerError reports a 5xx response.
func IsServerError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return false
}

// IsNetwork reports a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// Message returns the server-provided message of an HTTPError, or "".
func Message(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	return ""
}
