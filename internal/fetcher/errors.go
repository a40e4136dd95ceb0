package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRetriesExhausted is wrapped by the error of a recoverable outcome
	// when every attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrBodyTooLarge is returned when a response body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInvalidRequest is returned when no request can be built for a URL.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCorruptBody is returned when the body does not match its
	// Content-Encoding.
	ErrCorruptBody = errors.New("corrupt response body")

	// ErrUnsupportedEncoding is returned for a Content-Encoding the client
	// cannot decode.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)

// StatusError reports an HTTP error status.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code, always >= 400.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
