package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for structurally malformed or insufficient data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigurationMismatch is returned when a configuration table disagrees with a runtime value.
	ErrConfigurationMismatch = errors.New("configuration mismatch")

	// ErrNumericDegeneracy marks a zero-variance feature column. It is a diagnostic, not a failure.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)

// DegenerateColumnError reports a feature column whose values are identical for every customer.
type DegenerateColumnError struct {
	Column string
	Value  float64
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("column %s has zero variance (every value is %g)", e.Column, e.Value)
}

func (e *DegenerateColumnError) Unwrap() error { return ErrNumericDegeneracy }
