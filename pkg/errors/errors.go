package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system.
// The value doubles as the machine-readable code sent to API clients.
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeSnapshotMissing indicates the CNES establishments table was not found
	ErrorTypeSnapshotMissing ErrorType = "SNAPSHOT_MISSING"

	// ErrorTypeSnapshotMalformed indicates an unparseable required column
	ErrorTypeSnapshotMalformed ErrorType = "SNAPSHOT_MALFORMED"

	// ErrorTypeGeocodeUnavailable indicates an address could not be resolved
	ErrorTypeGeocodeUnavailable ErrorType = "GEOCODE_UNAVAILABLE"

	// ErrorTypeDatasetUnavailable indicates the query service has no loaded dataset
	ErrorTypeDatasetUnavailable ErrorType = "DATASET_UNAVAILABLE"

	// ErrorTypeBadRequest indicates out-of-range or unparseable query input
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"

	// ErrorTypeRoutingProviderFailed indicates the travel-time provider failed or timed out
	ErrorTypeRoutingProviderFailed ErrorType = "ROUTING_PROVIDER_FAILED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == t
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewSnapshotMissingError reports that no establishments table exists for a snapshot
func NewSnapshotMissingError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeSnapshotMissing,
		Message: message,
	}
}

// NewSnapshotMalformedError reports an unparseable required column
func NewSnapshotMalformedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSnapshotMalformed,
		Message: message,
		Err:     err,
	}
}

// NewGeocodeUnavailableError reports an unresolved address
func NewGeocodeUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeGeocodeUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewDatasetUnavailableError reports that the query service is cold
func NewDatasetUnavailableError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeDatasetUnavailable,
		Message: message,
	}
}

// NewBadRequestError reports out-of-range query input
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Message: message,
	}
}

// NewRoutingProviderError wraps a travel-time provider failure
func NewRoutingProviderError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRoutingProviderFailed,
		Message: message,
		Err:     err,
	}
}
