package api

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a platform request failure carrying the HTTP status of
// the response. Adapters wrap their SDK errors in this type so the store
// can tell authentication challenges apart from other failures.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("platform request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform request failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NewRequestError wraps err with the response status code.
func NewRequestError(statusCode int, err error) *RequestError {
	return &RequestError{StatusCode: statusCode, Err: err}
}

// StatusCode extracts the HTTP status from an adapter error, or 0 when the
// error carries none.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// IsAuthError reports whether err is an authentication challenge
// (HTTP 401 or 403).
func IsAuthError(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
