package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Step execution error codes
const (
	ErrMissingTarget ErrorCode = "MISSING_TARGET"
	ErrUnknownAction ErrorCode = "UNKNOWN_ACTION"
	ErrInvalidPath   ErrorCode = "INVALID_PATH"
	ErrStepFailed    ErrorCode = "STEP_FAILED"
	ErrTimeout       ErrorCode = "TIMEOUT"
)

// Run setup and pool error codes
const (
	ErrSetupFailed    ErrorCode = "SETUP_FAILED"
	ErrPoolExhausted  ErrorCode = "POOL_EXHAUSTED"
	ErrPoolClosed     ErrorCode = "POOL_CLOSED"
	ErrProviderError  ErrorCode = "PROVIDER_ERROR"
	ErrSessionUnknown ErrorCode = "SESSION_UNKNOWN"
)

// Vision error codes
const (
	ErrMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrInvalidResponse   ErrorCode = "INVALID_RESPONSE"
	ErrUpstreamError     ErrorCode = "UPSTREAM_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code, so sentinel *Error values
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err (or anything it wraps) carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
