package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatInvalidPath ErrorCategory = "invalid_path" // Path missing or unreadable at registration
	ErrCatParse       ErrorCategory = "parse"        // Malformed document
	ErrCatValidation  ErrorCategory = "validation"   // Parseable but inconsistent
	ErrCatHandler     ErrorCategory = "handler"      // Subscriber failed during dispatch
	ErrCatIO          ErrorCategory = "io"           // Transient read failure
	ErrCatNotFound    ErrorCategory = "not_found"    // Resource not found
	ErrCatConfig      ErrorCategory = "config"       // Invalid configuration
	ErrCatInternal    ErrorCategory = "internal"     // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrInvalidPath creates an error for a path that cannot be registered.
func ErrInvalidPath(path string, cause error) *DomainError {
	return (&DomainError{
		Category:  ErrCatInvalidPath,
		Code:      CodeInvalidPath,
		Message:   fmt.Sprintf("cannot monitor %s", path),
		Retryable: false,
	}).WithCause(cause).WithDetail("path", path)
}

// ErrIO creates a transient I/O error. The monitor retries on the next tick.
func ErrIO(path string, cause error) *DomainError {
	return (&DomainError{
		Category:  ErrCatIO,
		Code:      CodeReadFailed,
		Message:   fmt.Sprintf("reading %s", path),
		Retryable: true,
	}).WithCause(cause).WithDetail("path", path)
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrConfig creates a configuration error.
func ErrConfig(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatConfig,
		Code:      CodeInvalidConfig,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	var parseErr *ParseError
	// A half-written file parses fine on a later tick.
	return errors.As(err, &parseErr)
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrCatParse
	}
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return ErrCatHandler
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// ParseError reports a malformed document. Offset is the byte offset into the
// input at which the parser gave up; Line is 1-based when known.
type ParseError struct {
	Source string
	Reason string
	Offset int64
	Line   int
	Cause  error
}

// NewParseError creates a parse error for source.
func NewParseError(source, reason string, offset int64) *ParseError {
	return &ParseError{Source: source, Reason: reason, Offset: offset}
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("offset %d", e.Offset)
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d, offset %d", e.Line, e.Offset)
	}
	if e.Source != "" {
		return fmt.Sprintf("parse %s: %s (%s)", e.Source, e.Reason, loc)
	}
	return fmt.Sprintf("parse: %s (%s)", e.Reason, loc)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// HandlerError wraps a failure raised by an event subscriber.
type HandlerError struct {
	EventType string
	HandlerID string
	Cause     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s: %v", e.HandlerID, e.EventType, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// Predefined error codes
const (
	CodeInvalidPath      = "INVALID_PATH"
	CodeReadFailed       = "READ_FAILED"
	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeInvalidConfig    = "INVALID_CONFIG"

	// Validation error codes
	CodeEmptyTaskID       = "EMPTY_TASK_ID"
	CodeDuplicateTask     = "DUPLICATE_TASK"
	CodeDanglingReference = "DANGLING_DEPENDENCY"
	CodeSelfDependency    = "SELF_DEPENDENCY"
	CodeDependencyCycle   = "DEPENDENCY_CYCLE"
	CodeInvalidWorkflow   = "INVALID_WORKFLOW"
)
