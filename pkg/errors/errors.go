// Package errors provides structured error types for transformerscope.
// Errors include context, causes, and actionable suggestions.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryConfig     Category = "config"     // Configuration loading/parsing errors
	CategoryData       Category = "data"       // Value store, builder and ranking errors
	CategoryTemplate   Category = "template"   // Template parsing and validation errors
	CategoryValidation Category = "validation" // Input validation errors
	CategoryNetwork    Category = "network"    // Server/connectivity errors
	CategoryIO         Category = "io"         // File/IO and snapshot errors
	CategoryInternal   Category = "internal"   // Internal/unexpected errors
)

// TScopeError is a structured error with context and suggestions.
// It implements the error interface and supports error wrapping.
type TScopeError struct {
	// Code is a unique identifier for this error type (e.g., "SHAPE_MISMATCH")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error that triggered this error (for wrapping)
	Cause error

	// Suggestions are actionable remediation steps for the user
	Suggestions []string
}

// Error implements the error interface.
func (e *TScopeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *TScopeError) Unwrap() error {
	return e.Cause
}

// Is reports whether e matches target for errors.Is() checks.
// Two TScopeErrors match if they have the same Code.
func (e *TScopeError) Is(target error) bool {
	if t, ok := target.(*TScopeError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new TScopeError with the given code, category, and message.
func New(code string, category Category, message string) *TScopeError {
	return &TScopeError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// Newf creates a new TScopeError whose category is looked up from the code.
func Newf(code, format string, args ...interface{}) *TScopeError {
	return AttachSuggestions(New(code, CodeCategory(code), fmt.Sprintf(format, args...)))
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *TScopeError) WithContext(key, value string) *TScopeError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause wraps an underlying error and returns the error for chaining.
func (e *TScopeError) WithCause(cause error) *TScopeError {
	e.Cause = cause
	return e
}

// WithSuggestion adds a remediation suggestion and returns the error for chaining.
func (e *TScopeError) WithSuggestion(suggestion string) *TScopeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// HasSuggestions returns true if the error has suggestions.
func (e *TScopeError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns the context entries as sorted key="value" pairs.
func (e *TScopeError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
	}
	return strings.Join(parts, ", ")
}

// Wrap wraps an existing error with a TScopeError.
func Wrap(err error, code string, category Category, message string) *TScopeError {
	return New(code, category, message).WithCause(err)
}

// Wrapf wraps err with a code whose category is looked up from the code,
// attaching registry suggestions.
func Wrapf(err error, code, format string, args ...interface{}) *TScopeError {
	return AttachSuggestions(Wrap(err, code, CodeCategory(code), fmt.Sprintf(format, args...)))
}

// AsTScopeError finds the first TScopeError in err's chain.
func AsTScopeError(err error) (*TScopeError, bool) {
	if err == nil {
		return nil, false
	}
	var te *TScopeError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsCategory checks if an error is a TScopeError with the given category.
func IsCategory(err error, category Category) bool {
	if te, ok := AsTScopeError(err); ok {
		return te.Category == category
	}
	return false
}

// IsCode checks if an error is a TScopeError with the given code.
func IsCode(err error, code string) bool {
	if te, ok := AsTScopeError(err); ok {
		return te.Code == code
	}
	return false
}

// -----------------------------------------------------------------------------
// Helper Constructors for Common Error Types
// -----------------------------------------------------------------------------

// ConfigErrorf creates a new configuration error with formatted message.
func ConfigErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryConfig, fmt.Sprintf(format, args...))
}

// DataErrorf creates a new data error with formatted message.
// Use for store, builder and ranking failures.
func DataErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryData, fmt.Sprintf(format, args...))
}

// TemplateErrorf creates a new template error with formatted message.
func TemplateErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryTemplate, fmt.Sprintf(format, args...))
}

// ValidationErrorf creates a new validation error with formatted message.
func ValidationErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryValidation, fmt.Sprintf(format, args...))
}

// IOErrorf creates a new IO error with formatted message.
func IOErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryIO, fmt.Sprintf(format, args...))
}

// InternalErrorf creates a new internal error with formatted message.
func InternalErrorf(code, format string, args ...interface{}) *TScopeError {
	return New(code, CategoryInternal, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------
// Wrapping Helpers for Common Error Types
// -----------------------------------------------------------------------------

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *TScopeError {
	return Wrap(err, code, CategoryConfig, message)
}

// WrapIO wraps an error as an IO error.
func WrapIO(err error, code, message string) *TScopeError {
	return Wrap(err, code, CategoryIO, message)
}

// WrapNetwork wraps an error as a network error.
func WrapNetwork(err error, code, message string) *TScopeError {
	return Wrap(err, code, CategoryNetwork, message)
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, code, message string) *TScopeError {
	return Wrap(err, code, CategoryInternal, message)
}
