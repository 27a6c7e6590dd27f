package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeInvalidExpression    = "INVALID_EXPRESSION"
	ErrCodeUnsupportedDimension = "UNSUPPORTED_DIMENSION"
	ErrCodeNoExpression         = "NO_EXPRESSION"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeRequestRejected      = "REQUEST_REJECTED"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeStore                = "STORE_ERROR"
	ErrCodeCancelled            = "CANCELLED"
)

// IntegraError is the structured error type for all integra operations.
type IntegraError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *IntegraError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *IntegraError) Unwrap() error {
	return e.Cause
}

// NewError creates a new IntegraError.
func NewError(code, message string) *IntegraError {
	return &IntegraError{Code: code, Message: message}
}

// NewErrorf creates a new IntegraError with a formatted message.
func NewErrorf(code, format string, args ...any) *IntegraError {
	return &IntegraError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *IntegraError) WithCause(err error) *IntegraError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *IntegraError) WithDetails(details map[string]any) *IntegraError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) an IntegraError with the given code.
func IsCode(err error, code string) bool {
	var ie *IntegraError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// IsClientError reports whether the error was caused by the caller's input
// rather than by the engine or its storage.
func IsClientError(err error) bool {
	var ie *IntegraError
	if !errors.As(err, &ie) {
		return false
	}
	switch ie.Code {
	case ErrCodeInvalidExpression, ErrCodeUnsupportedDimension, ErrCodeNoExpression,
		ErrCodeInvalidRequest, ErrCodeRequestRejected, ErrCodeValidation:
		return true
	}
	return false
}
