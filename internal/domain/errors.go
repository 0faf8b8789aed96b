package domain

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// ErrThermalTimeInvalid is returned when a growing-season threshold is never
// crossed and invalid thermal time is not allowed.
var ErrThermalTimeInvalid = errors.New("thermal time never crosses growing season thresholds")

// NoDataError means the input ended before any data row was found.
type NoDataError struct {
	Trim int
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data after skipping %d lines", e.Trim)
}

// NotEnoughColumnsError means the first data row is narrower than the field list.
type NotEnoughColumnsError struct {
	Row      int
	Got      int
	Expected int
}

func (e *NotEnoughColumnsError) Error() string {
	return fmt.Sprintf("row %d: found %d columns, expected at least %d", e.Row, e.Got, e.Expected)
}

// NotEnoughTrimError means the first data row still looks like a header.
type NotEnoughTrimError struct {
	Row int
}

func (e *NotEnoughTrimError) Error() string {
	return fmt.Sprintf("row %d: non-numeric data, are there more header rows to trim?", e.Row)
}

// InvalidDataError points at a missing or non-numeric cell. Row and Col are 1-based.
type InvalidDataError struct {
	Row int
	Col int
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid or missing data at row %d, column %d", e.Row, e.Col)
}

// UnquotedStringError means a row contains an unquoted value that is not a number.
type UnquotedStringError struct {
	Row   int
	Value string
}

func (e *UnquotedStringError) Error() string {
	return fmt.Sprintf("row %d: unquoted non-numeric value %q", e.Row, e.Value)
}

// InvalidFieldCountError means a row's width does not match the kernel's inputs.
type InvalidFieldCountError struct {
	Row      int
	Got      int
	Expected int
}

func (e *InvalidFieldCountError) Error() string {
	return fmt.Sprintf("row %d: got %d input fields, kernel expects %d", e.Row, e.Got, e.Expected)
}

// RequiredFieldError lists fields that must be present but are not.
type RequiredFieldError struct {
	Fields []string
}

func (e *RequiredFieldError) Error() string {
	return "required fields missing: " + strings.Join(e.Fields, ", ")
}

// UnknownVariantError means a selector does not name a known variant.
type UnknownVariantError struct {
	Category string
	Selector string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s variant %q", e.Category, e.Selector)
}

// AlignmentError means two gridded sources disagree about a cell's location.
// It indicates a grid-alignment bug rather than bad data.
type AlignmentError struct {
	Coord             Coordinate
	Field             string
	Source, Overrides float64
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("grid misaligned at %s: %s is %g in input but %g in overrides",
		e.Coord.Key(), e.Field, e.Source, e.Overrides)
}

// PanicError is a recovered panic from one run or cell.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError wraps a value returned by recover with the current stack.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panicked: %v", e.Value)
}
