// This file provides the validation error type and helpers used by Config.Validate.
//
// # Available Helper Functions
//
//   - validateIntRange() - Validates that an integer value is within a specified range
//   - ValidateRequired() - Validates that a required field is not empty
//   - ValidateInList() - Validates that a value is in an allowed list
//   - ValidatePositiveInt() - Validates that a value is a positive integer

package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/logger"
)

var validationLog = logger.New("config:validation")

// ValidationError reports one invalid setting with a hint on how to fix it.
type ValidationError struct {
	Field      string
	Value      string
	Reason     string
	Suggestion string
}

// NewValidationError returns a *ValidationError.
func NewValidationError(field, value, reason, suggestion string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason, Suggestion: suggestion}
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}

// validateIntRange validates that value is within the inclusive range [lo, hi].
func validateIntRange(field string, value, lo, hi int) error {
	if value < lo || value > hi {
		validationLog.Printf("Range validation failed: field=%s value=%d", field, value)
		return NewValidationError(
			field,
			strconv.Itoa(value),
			fmt.Sprintf("must be between %d and %d", lo, hi),
			fmt.Sprintf("Set '%s' to a value from %d to %d", field, lo, hi),
		)
	}
	return nil
}

// ValidateRequired validates that a required field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		validationLog.Printf("Required field validation failed: field=%s", field)
		return NewValidationError(
			field,
			value,
			"field is required and cannot be empty",
			fmt.Sprintf("Provide a non-empty value for '%s'", field),
		)
	}
	return nil
}

// ValidateInList validates that a value is in an allowed list
func ValidateInList(field, value string, allowedValues []string) error {
	if slices.Contains(allowedValues, value) {
		return nil
	}

	validationLog.Printf("List validation failed: field=%s, value=%s not in allowed list", field, value)
	return NewValidationError(
		field,
		value,
		fmt.Sprintf("value is not in allowed list: %v", allowedValues),
		fmt.Sprintf("Choose one of the allowed values for '%s': %s", field, strings.Join(allowedValues, ", ")),
	)
}

// ValidatePositiveInt validates that a value is a positive integer
func ValidatePositiveInt(field string, value int64) error {
	if value <= 0 {
		return NewValidationError(
			field,
			strconv.FormatInt(value, 10),
			"value must be a positive integer",
			fmt.Sprintf("Provide a positive integer value for '%s'", field),
		)
	}
	return nil
}
