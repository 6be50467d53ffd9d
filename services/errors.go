package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// ErrorTypeInvalidColumn means a query or select referenced a column that
	// does not exist on the entity. This is a client bug, never an
	// authorization failure.
	ErrorTypeInvalidColumn ErrorType = "invalid_column"

	// ErrorTypeBadData covers client-correctable data problems: missing
	// required fields, duplicate unique values, item limits, malformed input.
	ErrorTypeBadData ErrorType = "bad_data"

	// ErrorTypeNotAuthenticated means the operation requires a logged-in
	// caller and none was present.
	ErrorTypeNotAuthenticated ErrorType = "not_authenticated"

	// ErrorTypeNotAuthorized means the caller is authenticated but lacks the
	// required permission for the model, column, or query predicate.
	ErrorTypeNotAuthorized ErrorType = "not_authorized"

	// ErrorTypePaymentRequired means the feature is gated behind a billing
	// plan the current tenant does not have.
	ErrorTypePaymentRequired ErrorType = "payment_required"

	// ErrorTypeNotFound means the requested resource does not exist.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeDatabaseNotConnected is an infrastructure failure.
	ErrorTypeDatabaseNotConnected ErrorType = "database_not_connected"

	// ErrorTypeInternal is an unexpected server-side failure.
	ErrorTypeInternal ErrorType = "internal"
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

// Is implements errors.Is
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

// Domain error variables

var (
	ErrNotAuthenticated     = NewDomainError(ErrorTypeNotAuthenticated, "login required", nil)
	ErrNotAuthorized        = NewDomainError(ErrorTypeNotAuthorized, "insufficient permissions", nil)
	ErrPaymentRequired      = NewDomainError(ErrorTypePaymentRequired, "current billing plan does not include this feature", nil)
	ErrSubscriptionUnpaid   = NewDomainError(ErrorTypePaymentRequired, "subscription is unpaid", nil)
	ErrDatabaseNotConnected = NewDomainError(ErrorTypeDatabaseNotConnected, "database is not connected", nil)
	ErrEntityNotFound       = NewDomainError(ErrorTypeNotFound, "entity not found", nil)
)

// NewInvalidColumnError creates an InvalidColumn error naming the offending column
func NewInvalidColumnError(table, column string) *DomainError {
	return NewDomainError(ErrorTypeInvalidColumn,
		fmt.Sprintf("column %q does not exist on %s", column, table), nil).
		WithDetail("table", table).
		WithDetail("column", column)
}

// NewBadDataError creates a BadData error with a human-readable message
func NewBadDataError(message string) *DomainError {
	return NewDomainError(ErrorTypeBadData, message, nil)
}

// NewNotAuthorizedError creates a NotAuthorized error with a human-readable message.
// The message should name the acceptable permissions or the offending column,
// never other tenants' data.
func NewNotAuthorizedError(message string) *DomainError {
	return NewDomainError(ErrorTypeNotAuthorized, message, nil)
}

// NewNotAuthenticatedError creates a NotAuthenticated error
func NewNotAuthenticatedError(message string) *DomainError {
	return NewDomainError(ErrorTypeNotAuthenticated, message, nil)
}

// NewPaymentRequiredError creates a PaymentRequired error
func NewPaymentRequiredError(message string) *DomainError {
	return NewDomainError(ErrorTypePaymentRequired, message, nil)
}

// Error type checking helper functions

// IsInvalidColumnError checks if an error is an invalid column error
func IsInvalidColumnError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInvalidColumn
	}
	return false
}

// IsBadDataError checks if an error is a bad data error
func IsBadDataError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeBadData
	}
	return false
}

// IsNotAuthenticatedError checks if an error is a not authenticated error
func IsNotAuthenticatedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotAuthenticated
	}
	return false
}

// IsNotAuthorizedError checks if an error is a not authorized error
func IsNotAuthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotAuthorized
	}
	return false
}

// IsPaymentRequiredError checks if an error is a payment required error
func IsPaymentRequiredError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePaymentRequired
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsDatabaseNotConnectedError checks if an error is a database connectivity error
func IsDatabaseNotConnectedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeDatabaseNotConnected
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
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

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
