package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of diagnostic.
type Category string

const (
	CategoryContract  Category = "contract"
	CategoryListener  Category = "listener"
	CategoryLifecycle Category = "lifecycle"
	CategoryFetch     Category = "fetch"
	CategoryConfig    Category = "config"
	CategoryCLI       Category = "cli"
)

// Error is a structured diagnostic with a code, category and the cell it
// originated from.
type Error struct {
	// Code is a unique error identifier (e.g., "C001").
	Code string

	// Category is the diagnostic type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Cell is the name of the cell that reported the error, if any.
	Cell string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Cell != "" {
		msg = fmt.Sprintf("%s (cell %q)", msg, e.Cell)
	}
	if e.Wrapped != nil {
		msg = msg + ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithCell records the cell the diagnostic belongs to.
func (e *Error) WithCell(name string) *Error {
	e.Cell = name
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// FromError wraps a standard error in an Error.
// Errors that already are *Error are returned unchanged.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CategoryOf returns the category of the first *Error in err's chain, or "".
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
