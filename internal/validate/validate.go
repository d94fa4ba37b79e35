// SPDX-License-Identifier: MIT

// Package validate provides schema validation utilities for resolved training
// configuration records.
package validate

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Error represents a validation error
type Error struct {
	Field   string      // Dotted field path that failed validation
	Value   interface{} // The invalid value
	Message string      // Human-readable error message
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors and can produce a ValidationError when invalid.
type Validator struct {
	prefix string
	errors *[]Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	errs := make([]Error, 0)
	return &Validator{errors: &errs}
}

// Scope returns a validator sharing this validator's error list whose field
// names are prefixed with name. Scopes nest.
func (v *Validator) Scope(name string) *Validator {
	return &Validator{prefix: v.field(name), errors: v.errors}
}

func (v *Validator) field(name string) string {
	if v.prefix == "" {
		return name
	}
	if name == "" {
		return v.prefix
	}
	return v.prefix + "." + name
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string, value interface{}) {
	*v.errors = append(*v.errors, Error{
		Field:   v.field(field),
		Value:   value,
		Message: message,
	})
}

// IsValid returns true if no errors have been accumulated
func (v *Validator) IsValid() bool {
	return len(*v.errors) == 0
}

// Errors returns all accumulated validation errors
func (v *Validator) Errors() []Error {
	return *v.errors
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(*v.errors) == 0 {
		return nil
	}

	copied := make([]Error, len(*v.errors))
	copy(copied, *v.errors)

	return ValidationError{errors: copied}
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}

	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Min validates that an integer is at least minVal.
func (v *Validator) Min(field string, value, minVal int) {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("value must be >= %d, got %d", minVal, value), value)
	}
}

// FloatRange validates that a float is finite and within [minVal, maxVal].
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.AddError(field, "value must be finite", value)
		return
	}
	if value < minVal || value > maxVal {
		v.AddError(field,
			fmt.Sprintf("value must be between %g and %g, got %g", minVal, maxVal, value),
			value)
	}
}

// Positive validates that a float is finite and strictly greater than zero.
func (v *Validator) Positive(field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be > 0, got %g", value), value)
	}
}

// NonNegative validates that a float is finite and >= 0.
func (v *Validator) NonNegative(field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		v.AddError(field, fmt.Sprintf("value must be >= 0, got %g", value), value)
	}
}

// NotEmpty validates that a string is not empty or whitespace-only
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf validates that a value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) {
	if slices.Contains(allowed, value) {
		return
	}
	v.AddError(field,
		fmt.Sprintf("must be one of %v, got %q", allowed, value),
		value)
}
