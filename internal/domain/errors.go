// Package domain holds the error taxonomy shared by every engine component.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can use errors.Is.
var (
	// ErrConfiguration indicates a bad dimension, parameter or substrate. Fix the input before retrying.
	ErrConfiguration = errors.New("coherence: invalid configuration")

	// ErrDimensionMismatch indicates an operator or state whose shape does not match the Hilbert space.
	ErrDimensionMismatch = errors.New("coherence: dimension mismatch")

	// ErrUnknownSubstrate indicates a substrate name with no parameter table.
	ErrUnknownSubstrate = errors.New("coherence: unknown substrate")
)

// ConfigurationError describes which configuration value was rejected and why.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
	// Cause defaults to ErrConfiguration when nil.
	Cause error
}

// NewConfigurationError creates a configuration error for a field
func NewConfigurationError(field string, value interface{}, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", e.Unwrap().Error(), e.Field, e.Value, e.Reason)
}

// Unwrap returns the underlying sentinel
func (e *ConfigurationError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrConfiguration
}

// Is reports ErrConfiguration for every configuration error, including unknown substrates.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// DimensionMismatchError reports the expected square dimension and the shape actually received.
type DimensionMismatchError struct {
	Context string
	Want    int
	GotRows int
	GotCols int
}

// NewDimensionMismatchError creates a dimension mismatch error
func NewDimensionMismatchError(context string, want, rows, cols int) *DimensionMismatchError {
	return &DimensionMismatchError{Context: context, Want: want, GotRows: rows, GotCols: cols}
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: want %dx%d, got %dx%d",
		ErrDimensionMismatch.Error(), e.Context, e.Want, e.Want, e.GotRows, e.GotCols)
}

// Unwrap returns ErrDimensionMismatch
func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
