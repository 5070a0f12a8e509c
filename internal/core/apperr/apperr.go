// Package apperr defines the error shapes that travel between the gateway and
// the microservices.
//
// HTTPError is raised by the HTTP-facing code and carries a status directly.
// RPCError is raised by microservice handlers and wraps a payload that is sent
// back over the broker unchanged. Anything else is treated as an unexpected
// internal error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int
	Message string
}

// NewHTTP creates an HTTPError.
func NewHTTP(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Payload is the body of an RPCError as seen by the remote caller.
type Payload struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// RPCError is an error raised inside a microservice handler.
type RPCError struct {
	Payload Payload
}

// NewRPC creates an RPCError.
func NewRPC(statusCode int, message string) *RPCError {
	return &RPCError{Payload: Payload{StatusCode: statusCode, Message: message}}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Payload.StatusCode, e.Payload.Message)
}

// GetError returns the wrapped payload.
func (e *RPCError) GetError() Payload {
	return e.Payload
}

// NotFound returns an RPCError with status 404.
func NotFound(format string, args ...any) *RPCError {
	return NewRPC(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// Conflict returns an RPCError with status 409.
func Conflict(format string, args ...any) *RPCError {
	return NewRPC(http.StatusConflict, fmt.Sprintf(format, args...))
}

// BadRequest returns an RPCError with status 400.
func BadRequest(format string, args ...any) *RPCError {
	return NewRPC(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Internal returns an RPCError with status 500.
func Internal(format string, args ...any) *RPCError {
	return NewRPC(http.StatusInternalServerError, fmt.Sprintf(format, args...))
}

// Unauthorized returns an HTTPError with status 401.
func Unauthorized(message string) *HTTPError {
	return NewHTTP(http.StatusUnauthorized, message)
}

// AsHTTP reports whether err wraps an HTTPError.
func AsHTTP(err error) (*HTTPError, bool) {
	var target *HTTPError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsRPC reports whether err wraps an RPCError.
func AsRPC(err error) (*RPCError, bool) {
	var target *RPCError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
