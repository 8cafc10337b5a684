// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrDataNotFound    = errors.New("data not found")
	ErrEmptySnapshot   = errors.New("option chain snapshot is empty")
	ErrStrikeNotFound  = errors.New("strike not found in snapshot")
	ErrMalformedTime   = errors.New("timestamp is not minute aligned")
	ErrFeedUnavailable = errors.New("data feed unavailable")
	ErrMissingToken    = errors.New("missing api token")
	ErrUnknownModel    = errors.New("unknown strategy model")
)

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Date     string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Date, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Date, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, date, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Date:     date,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match validation failures against ErrConfigInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// FeedError represents a failure talking to a market data vendor.
type FeedError struct {
	Vendor     string
	StatusCode int
	Message    string
	Err        error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s] status=%d: %s: %v", e.Vendor, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("feed error [%s] status=%d: %s", e.Vendor, e.StatusCode, e.Message)
}

func (e *FeedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFeedUnavailable
}

// NewFeedError creates a new FeedError.
func NewFeedError(vendor string, statusCode int, message string, err error) *FeedError {
	return &FeedError{
		Vendor:     vendor,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
