// Package errors defines the typed error used throughout the application.
// Each error carries a category, for routing decisions like retry or
// fallback, and optional user-facing suggestions.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes an error by the stage that produced it.
type ErrorType string

const (
	ErrTypeLoad       ErrorType = "load"       // unreadable or malformed spreadsheet
	ErrTypePlan       ErrorType = "plan"       // model call failure, timeout, or unusable response
	ErrTypeRender     ErrorType = "render"     // analysis execution failed
	ErrTypeDataset    ErrorType = "dataset"    // dataset store operation failed
	ErrTypeValidation ErrorType = "validation" // invalid user input
	ErrTypeConfig     ErrorType = "config"
	ErrTypeNetwork    ErrorType = "network"
	ErrTypeInternal   ErrorType = "internal"
)

// Error is a categorized error with an optional cause and suggestions
// shown to the user alongside the message.
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

// New returns an error of the given category.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a category and message.
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Cause: err}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion appends user-facing resolution hints and returns the
// error for chaining.
func (e *Error) WithSuggestion(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// IsType reports whether err is, or wraps, an Error of the given category.
func IsType(err error, errType ErrorType) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Type == errType
}

// GetType returns err's category, or ErrTypeInternal for plain errors.
func GetType(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}

	return ErrTypeInternal
}

// NewLoadError builds a spreadsheet ingestion error with standard hints.
func NewLoadError(message string, cause error) *Error {
	return Wrap(cause, ErrTypeLoad, message).WithSuggestion(
		"Check that the file is a valid .xlsx, .xls, or .csv document",
		"The first worksheet must contain a header row followed by data rows",
	)
}

// NewConfigError builds a configuration error, optionally naming the field.
func NewConfigError(message, field string) *Error {
	if field != "" {
		message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return New(ErrTypeConfig, message).WithSuggestion(
		"Check your configuration file syntax",
		"Run with --help to see valid configuration options",
	)
}
