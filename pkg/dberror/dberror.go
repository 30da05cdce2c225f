// Package dberror defines the structured error returned by operator setup
// and spill I/O failures.
package dberror

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser covers invalid plans or arguments, such as a buffer
	// budget below an operator's minimum.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategorySystem covers environment failures: temp directory not
	// writable, disk full, missing files.
	ErrCategorySystem

	// ErrCategoryData covers corrupt or truncated spilled pages. These are
	// fatal for the query; nothing is retried.
	ErrCategoryData
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	default:
		return "unknown"
	}
}

// Error codes.
const (
	CodeInsufficientBuffers = "INSUFFICIENT_BUFFERS"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeChildOpenFailed     = "CHILD_OPEN_FAILED"
	CodeChildReadFailed     = "CHILD_READ_FAILED"
	CodeTempStorage         = "TEMP_STORAGE"
	CodeCorruptPage         = "CORRUPT_PAGE"
	CodeNotOpen             = "NOT_OPEN"
)

// DBError is a structured execution error with rich context information.
type DBError struct {
	// Code is a unique identifier for this error type, e.g. CodeTempStorage.
	Code string

	Category ErrorCategory

	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Operation identifies what was being performed, e.g. "Open", "Merge".
	Operation string

	// Component identifies the operator or subsystem, e.g. "ExternalSort".
	Component string

	Cause error

	// Stack is captured in New and Wrap.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf is New with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...any) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap wraps err with execution context. If err already carries a DBError
// in its chain, that error is enriched with operation and component (only
// when not already set) and returned unchanged otherwise.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  categoryFor(code),
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

func categoryFor(code string) ErrorCategory {
	switch code {
	case CodeCorruptPage:
		return ErrCategoryData
	case CodeInsufficientBuffers, CodeInvalidArgument, CodeNotOpen:
		return ErrCategoryUser
	default:
		return ErrCategorySystem
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// In sets Operation and Component and returns the receiver for chaining.
func (e *DBError) In(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// captureStack skips captureStack, New/Wrap and the runtime frame.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error formats as:
// [CODE] Message: Detail (operation: Operation, component: Component) caused by: cause
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil && e.Cause.Error() != e.Message {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

func (e *DBError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}

// HasCode reports whether err carries a DBError with the given code.
func HasCode(err error, code string) bool {
	var dbErr *DBError
	return errors.As(err, &dbErr) && dbErr.Code == code
}

// InsufficientBuffers is the fail-fast error for a buffer budget below an
// operator's minimum.
func InsufficientBuffers(component string, have, need int) *DBError {
	return Newf(ErrCategoryUser, CodeInsufficientBuffers,
		"%s needs at least %d buffers, got %d", component, need, have).In("Open", component)
}

// InvalidCapacity rejects a page capacity that cannot hold a single tuple.
func InvalidCapacity(component string, capacity int) *DBError {
	return Newf(ErrCategoryUser, CodeInvalidArgument,
		"%s page capacity must be at least 1, got %d", component, capacity).In("Open", component)
}
