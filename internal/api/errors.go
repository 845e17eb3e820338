// Package api provides the typed REST client for the ShopClip backend.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// ErrorKind partitions API failures into the classes callers branch on.
type ErrorKind string

const (
	// KindClient marks a terminal request error (4xx). The request was
	// understood and rejected; repeating it unchanged will not help.
	KindClient ErrorKind = "client"

	// KindServer marks a backend-side failure (5xx).
	KindServer ErrorKind = "server"

	// KindNetwork marks a transport-level failure (connection refused or
	// reset, DNS failure) where no HTTP response was received.
	KindNetwork ErrorKind = "network"

	// KindTimeout marks a request that exceeded its deadline. Timeouts are
	// terminal and never retried.
	KindTimeout ErrorKind = "timeout"
)

// Error is the failure type returned by every Client method.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status code, 0 when no response was received
	Code    string // machine-readable backend code, may be empty
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Status != 0 {
		if e.Code != "" {
			return fmt.Sprintf("%s (status %d, code %s)", msg, e.Status, e.Code)
		}
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure class is transient. Client errors
// are permanent except 408 and 429; timeouts are always terminal.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindServer, KindNetwork:
		return true
	case KindClient:
		return e.Status == nethttp.StatusRequestTimeout ||
			e.Status == nethttp.StatusTooManyRequests
	default:
		return false
	}
}

// IsUnauthorized reports whether err is an API error with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == nethttp.StatusUnauthorized
}

// IsNotFound reports whether err is an API error with status 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == nethttp.StatusNotFound
}

// IsTimeout reports whether err is an API timeout error.
func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindTimeout
}

// errorBody is the backend's error envelope. Every field is optional.
type errorBody struct {
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

// maxErrorBodyBytes bounds how much of an error response is read when
// building an *Error.
const maxErrorBodyBytes = 64 << 10

// responseError converts a non-2xx response into an *Error. The body is
// parsed best-effort; absent or malformed bodies fall back to a generic
// message derived from the status code.
func responseError(resp *nethttp.Response) *Error {
	apiErr := &Error{
		Kind:   kindForStatus(resp.StatusCode),
		Status: resp.StatusCode,
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Details = body.Details
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		if text := nethttp.StatusText(resp.StatusCode); text != "" {
			apiErr.Message = strings.ToLower(text)
		} else {
			apiErr.Message = "request failed"
		}
	}
	return apiErr
}

func kindForStatus(status int) ErrorKind {
	if status >= 500 {
		return KindServer
	}
	return KindClient
}
