package errors

import (
	"fmt"
)

// ErrorCode classifies failures surfaced by the capture and retrieval services.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the requested record does not exist or is not
	// visible to the caller.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeValidationFailed indicates invalid input parameters.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeModelFailure indicates the embedding model could not produce output.
	ErrCodeModelFailure ErrorCode = "MODEL_FAILURE"
	// ErrCodeStoreFailure indicates a persistence layer failure.
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// ServiceError is a structured error carrying a stable code.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NotFound creates a not found error.
func NotFound(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailed creates a validation error.
func ValidationFailed(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeValidationFailed, Message: msg}
}

// ModelFailure creates a model failure error.
func ModelFailure(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeModelFailure, Message: msg, Cause: cause}
}

// StoreFailure creates a store failure error.
func StoreFailure(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeStoreFailure, Message: msg, Cause: cause}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeUnauthorized, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *ServiceError {
	return &ServiceError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks whether an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ServiceError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.Code
	}
	return defaultCode
}
