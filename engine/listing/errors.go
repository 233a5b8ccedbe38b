package listing

import (
	"errors"
	"fmt"
)

// Sentinel errors for record validation and identity resolution.
var (
	ErrEmptyLink       = errors.New("empty link")
	ErrInvalidLink     = errors.New("invalid link")
	ErrEmptySource     = errors.New("empty source")
	ErrUnknownCategory = errors.New("unknown category")
)

// RecordError wraps a sentinel with the offending field and value.
type RecordError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *RecordError) Unwrap() error { return e.Wrapped }

// NewRecordError creates a RecordError.
func NewRecordError(field, value string, wrapped error) *RecordError {
	return &RecordError{Field: field, Value: value, Wrapped: wrapped}
}
