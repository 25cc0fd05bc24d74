package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Precondition violations: no pending 2FA session, no signed-in user,
	// factor not in the state the operation expects.
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"

	// Field-level validation failures. Details carry field -> message.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Non-2xx answer (or transport failure) from the SMS gateway or mail relay.
	ErrCodeGatewayFailed ErrorCode = "GATEWAY_FAILED"

	// Second factor
	ErrCode2FAInvalid ErrorCode = "TWO_FA_INVALID"
	ErrCodeUserLocked ErrorCode = "USER_LOCKED"

	// The user store rejected an update.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// PublicMessage returns the message that is safe to show to an end user.
// Internal errors never leak their wrapped cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != ErrCodeInternal {
		return e.Message
	}
	return "internal error"
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodePreconditionFailed:
		return http.StatusBadRequest

	case ErrCodeUnauthorized, ErrCodeInvalidCredentials, ErrCode2FAInvalid:
		return http.StatusUnauthorized

	case ErrCodeUserLocked:
		return http.StatusForbidden

	case ErrCodeNotFound:
		return http.StatusNotFound

	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	case ErrCodeGatewayFailed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// PreconditionFailed reports an operation invoked in a state it cannot run in.
func PreconditionFailed(message string) *Error {
	return New(ErrCodePreconditionFailed, message)
}

// FieldInvalid creates a validation error for a single field.
func FieldInvalid(field, message string) *Error {
	return New(ErrCodeValidationFailed, message).WithDetail(field, message)
}

// GatewayFailed wraps a delivery failure with a user-facing message.
func GatewayFailed(err error, message string) *Error {
	return Wrap(err, ErrCodeGatewayFailed, message)
}

// InvalidCode is deliberately generic: it never says which factor was tried.
func InvalidCode() *Error {
	return New(ErrCode2FAInvalid, "Invalid code.")
}

// PersistenceFailed wraps a rejected user-store update.
func PersistenceFailed(err error, message string) *Error {
	return Wrap(err, ErrCodePersistenceFailed, message)
}

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}
