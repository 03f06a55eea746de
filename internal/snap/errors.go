package snap

import (
	"errors"
	"fmt"
)

// Validation error codes (E200-E209).
const (
	ErrCodeSubdivision      = "E201" // subdivisions not in {1,2,4,8,16}
	ErrCodeQuantizeStrength = "E202" // quantize strength outside [0,1]
	ErrCodeBPM              = "E203" // bpm must be positive and finite
	ErrCodeTimes            = "E204" // beat/bar times negative or unordered
)

// ValidationError is returned when a configuration or analysis update is
// rejected. The previously active value stays in effect.
type ValidationError struct {
	// Field names the offending field, e.g. "subdivisions".
	Field string

	// Code identifies the error category.
	Code string

	// Message is the human-readable reason.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func newValidationError(field, code, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
