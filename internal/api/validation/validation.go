// Package validation provides struct validation and custom validators.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level singleton that is safe for concurrent use once init() has
// finished registering custom validators. Do NOT register validators after init().
var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}
}

// FieldError is a single failed field, in the order reported by the validator.
type FieldError struct {
	Field   string
	Message string
}

// ValidateStruct validates a struct using go-playground/validator.
// Returns a single error whose message joins every failed field.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// FieldErrors extracts per-field failures from an error returned by validate.Struct.
// Returns nil for any other error.
func FieldErrors(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	out := make([]FieldError, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		out = append(out, FieldError{
			Field:   fieldError.Field(),
			Message: formatFieldError(fieldError),
		})
	}

	return out
}

// Error is returned by ValidateStruct. Its message lists only the per-field messages;
// the validator errors stay reachable through Unwrap for FieldErrors.
type Error struct {
	message string
	err     error
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// formatValidationErrors converts validator errors to a formatted error message.
func formatValidationErrors(err error) error {
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	messages := make([]string, 0, len(fields))
	for _, f := range fields {
		messages = append(messages, f.Message)
	}

	return &Error{
		message: "validation failed: " + strings.Join(messages, "; "),
		err:     err,
	}
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

// validateNoNullBytes checks that a string field does not contain NULL bytes.
// Handles both string and *string types.
func validateNoNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return true
	}

	return !strings.Contains(field.String(), "\x00")
}
