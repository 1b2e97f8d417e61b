package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCode classifies a gateway failure for HTTP mapping.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeBackendTimeout ErrorCode = "BACKEND_TIMEOUT"
	CodeBackendUnavail ErrorCode = "BACKEND_UNAVAILABLE"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code alongside the underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError creates an invalid-input error.
func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

// NewBackendTimeoutError creates a backend timeout error.
func NewBackendTimeoutError(target string, err error) *AppError {
	return &AppError{Code: CodeBackendTimeout, Message: "timeout calling " + target, Err: err}
}

// NewBackendUnavailableError creates a backend connection error.
func NewBackendUnavailableError(target string, err error) *AppError {
	return &AppError{Code: CodeBackendUnavail, Message: "cannot connect to " + target, Err: err}
}

// NewInternalError creates a generic internal error.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// FromTransport classifies an outbound HTTP transport failure.
// Timeouts (including context deadline) map to CodeBackendTimeout,
// dial/connection failures to CodeBackendUnavail, the rest to CodeInternal.
func FromTransport(target string, err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewBackendTimeoutError(target, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewBackendTimeoutError(target, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewBackendUnavailableError(target, err)
	}
	return NewInternalError("forwarding request to "+target, err)
}

// HTTPStatus maps an error to the status code the gateway replies with.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeBackendTimeout:
		return http.StatusGatewayTimeout
	case CodeBackendUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body returns the {error, message} pair for the client-facing JSON body.
func Body(err error) (label, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeInvalidInput:
			return "Invalid request", appErr.Message
		case CodeBackendTimeout:
			return "Request timeout", "The model took too long to respond"
		case CodeBackendUnavail:
			return "Service unavailable", "Cannot connect to model service"
		}
	}
	return "Internal error", err.Error()
}
