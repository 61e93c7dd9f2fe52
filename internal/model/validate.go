package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// MaxModelNameLength bounds model names, which double as URL path segments.
const MaxModelNameLength = 128

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateModelName checks that name is usable as a model name.
func ValidateModelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("model name is required")
	}
	if len(name) > MaxModelNameLength {
		return fmt.Errorf("model name must be %d characters or fewer", MaxModelNameLength)
	}
	if !modelNamePattern.MatchString(name) {
		return fmt.Errorf("model name %q may only contain letters, digits, '.', '_' and '-'", name)
	}
	return nil
}
