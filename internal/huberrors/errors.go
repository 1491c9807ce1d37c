// Package huberrors provides sentinel and custom error types for the application.
package huberrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when a webhook payload lacks a field its event type requires.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrDownstream is the sentinel for failures of the user store or the identity provider API.
var ErrDownstream = &DownstreamError{}

// DownstreamError wraps a failed call to an external collaborator. Op names the call
// (e.g. create_user, set_metadata) so it can be logged without inspecting Err.
type DownstreamError struct {
	Op  string
	Err error
}

// NewDownstreamError creates a DownstreamError for op wrapping err.
func NewDownstreamError(op string, err error) *DownstreamError {
	return &DownstreamError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *DownstreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": downstream failure"
	}

	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *DownstreamError) Is(target error) bool {
	_, ok := target.(*DownstreamError)

	return ok
}
