package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNoToken       ErrorType = "no_token"
	ErrorTypeInvalidToken  ErrorType = "invalid_token"
	ErrorTypeForbidden     ErrorType = "forbidden"
	ErrorTypeProviderError ErrorType = "provider_error"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinel errors. Compare with errors.Is; wrapped copies match by type.
var (
	ErrNoToken         = NewDomainError(ErrorTypeNoToken, "authentication required", nil)
	ErrInvalidToken    = NewDomainError(ErrorTypeInvalidToken, "invalid or expired token", nil)
	ErrForbidden       = NewDomainError(ErrorTypeForbidden, "insufficient privileges", nil)
	ErrProviderFailure = NewDomainError(ErrorTypeProviderError, "identity provider request failed", nil)
	ErrUserNotFound    = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrInvalidProfile  = NewDomainError(ErrorTypeValidation, "invalid provider profile", nil)
	ErrInternal        = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorMessage returns the client-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthenticatedError reports a missing or unusable token
func IsUnauthenticatedError(err error) bool {
	t := GetErrorType(err)
	return t == ErrorTypeNoToken || t == ErrorTypeInvalidToken
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsProviderError checks if an error came from an identity provider
func IsProviderError(err error) bool {
	return GetErrorType(err) == ErrorTypeProviderError
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapProvider wraps an identity provider failure
func WrapProvider(message string, err error) error {
	return NewDomainError(ErrorTypeProviderError, message, err)
}
