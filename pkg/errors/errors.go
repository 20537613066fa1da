package errors

import "fmt"

type baseError struct {
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// ValidationError represents a validation error (HTTP 400)
type ValidationError struct {
	baseError
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError{message: message}}
}

func NewValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{baseError{message: fmt.Sprintf(format, args...)}}
}

// NotFoundError represents a not found error (HTTP 404)
type NotFoundError struct {
	baseError
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{baseError{message: message}}
}

func NewNotFoundErrorf(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{baseError{message: fmt.Sprintf(format, args...)}}
}

// NoAccountAvailableError means no worker account could serve the call.
// It is not retried by the pool.
type NoAccountAvailableError struct {
	baseError
}

func NewNoAccountAvailableError(message string) *NoAccountAvailableError {
	return &NoAccountAvailableError{baseError{message: message}}
}

func NewNoAccountAvailableErrorf(format string, args ...interface{}) *NoAccountAvailableError {
	return &NoAccountAvailableError{baseError{message: fmt.Sprintf(format, args...)}}
}

// TransientConnectionError is a network or proxy failure worth retrying
type TransientConnectionError struct {
	baseError
}

func NewTransientConnectionError(message string, cause error) *TransientConnectionError {
	return &TransientConnectionError{baseError{message: message, cause: cause}}
}

// AuthorizationError means credentials were rejected or extra verification is required
type AuthorizationError struct {
	baseError
}

func NewAuthorizationError(message string, cause error) *AuthorizationError {
	return &AuthorizationError{baseError{message: message, cause: cause}}
}

// RateLimitExceededError is an upstream throttling signal
type RateLimitExceededError struct {
	baseError
}

func NewRateLimitExceededError(message string, cause error) *RateLimitExceededError {
	return &RateLimitExceededError{baseError{message: message, cause: cause}}
}

// StoreUnavailableError means the fast counter store or the durable store is unreachable
type StoreUnavailableError struct {
	baseError
}

func NewStoreUnavailableError(message string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{baseError{message: message, cause: cause}}
}

// InternalError represents an internal server error (HTTP 500)
type InternalError struct {
	baseError
}

func NewInternalError(message string) *InternalError {
	return &InternalError{baseError{message: message}}
}

func NewInternalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{baseError{message: fmt.Sprintf(format, args...)}}
}
