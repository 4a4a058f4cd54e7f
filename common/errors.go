// Package common - shared vocabulary and error taxonomy for the localization pipeline.
package common

import "fmt"

// ConfigError reports an invalid or missing static configuration value.
//
// It is raised eagerly at construction time (scaler constants, extractor
// thresholds, mapper extents) so that a misconfigured pipeline never starts.
type ConfigError struct {
	// Field names the offending configuration entry.
	Field string
	// Reason describes why the value was rejected.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError for the given field.
//
// Arguments:
//   - field: The configuration entry being rejected.
//   - format: Reason format string and arguments.
//
// Returns:
//   - error: The typed configuration error.
func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ShapeError reports tensor or table dimensions that do not match what the
// receiving component expects.
type ShapeError struct {
	// Context names the operation that observed the mismatch.
	Context string
	// Got is the observed shape.
	Got []int
	// Want is the expected shape.
	Want []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: got %v, want %v", e.Context, e.Got, e.Want)
}

// NewShapeError creates a ShapeError for the given operation.
//
// Arguments:
//   - context: The operation that observed the mismatch.
//   - got: The observed shape.
//   - want: The expected shape.
//
// Returns:
//   - error: The typed shape error.
func NewShapeError(context string, got, want []int) error {
	return &ShapeError{Context: context, Got: got, Want: want}
}

// RangeError reports a value outside its documented domain, such as a pixel
// index beyond the grid or a keep fraction outside (0, 1].
type RangeError struct {
	// Field names the parameter whose value was out of range.
	Field string
	// Value is the rejected value.
	Value float64
	// Min and Max bound the accepted domain.
	Min float64
	Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s = %g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// NewRangeError creates a RangeError for the given parameter.
//
// Arguments:
//   - field: The parameter name.
//   - value: The rejected value.
//   - min: Lower bound of the accepted domain.
//   - max: Upper bound of the accepted domain.
//
// Returns:
//   - error: The typed range error.
func NewRangeError(field string, value, min, max float64) error {
	return &RangeError{Field: field, Value: value, Min: min, Max: max}
}

// UnitMismatchError reports an attempt to combine emitter collections that
// carry different coordinate units.
type UnitMismatchError struct {
	A Unit
	B Unit
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("unit mismatch: %q vs %q", e.A, e.B)
}
