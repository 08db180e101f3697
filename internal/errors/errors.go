// Package errors defines stable error codes for every pyclean failure mode.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// UnparsableFile indicates the Python source could not be parsed
	UnparsableFile ErrorCode = "UNPARSABLE_FILE"
	// UnsupportedSyntax indicates a syntax form pyclean refuses to rewrite
	// (semicolon-joined imports, colon-inlined blocks, form feed characters)
	UnsupportedSyntax ErrorCode = "UNSUPPORTED_SYNTAX"
	// ReadPermission indicates the file is not readable
	ReadPermission ErrorCode = "READ_PERMISSION"
	// WritePermission indicates the file is not writable
	WritePermission ErrorCode = "WRITE_PERMISSION"
	// InitFileMissing indicates a path names a non-existing __init__.py
	InitFileMissing ErrorCode = "INIT_FILE_MISSING"
	// UnexpandableStar indicates a wildcard import whose module cannot be introspected
	UnexpandableStar ErrorCode = "UNEXPANDABLE_STAR"
	// ModuleNotFound indicates an imported module could not be resolved
	ModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// CleanError represents a pyclean error with a stable code, a message,
// and the source file it belongs to.
type CleanError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  int       `json:"column,omitempty"`
	cause   error     // Underlying error (not exported to JSON)
}

// New creates a new CleanError
func New(code ErrorCode, message string, cause error) *CleanError {
	return &CleanError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *CleanError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	}
	switch {
	case loc != "" && e.cause != nil:
		return fmt.Sprintf("[%s] %s %s: %v", e.Code, loc, e.Message, e.cause)
	case loc != "":
		return fmt.Sprintf("[%s] %s %s", e.Code, loc, e.Message)
	case e.cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *CleanError) Unwrap() error {
	return e.cause
}

// WithLocation attaches a source location to the error
func (e *CleanError) WithLocation(path string, line, column int) *CleanError {
	e.Path = path
	e.Line = line
	e.Column = column
	return e
}

// WithPath attaches a source path to the error
func (e *CleanError) WithPath(path string) *CleanError {
	e.Path = path
	return e
}

// As is a pass-through to the standard library so that callers do not need
// two errors imports.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a pass-through to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// CodeOf extracts the ErrorCode from an error, or InternalError when the
// error is not a CleanError.
func CodeOf(err error) ErrorCode {
	var ce *CleanError
	if ok := As(err, &ce); ok {
		return ce.Code
	}
	return InternalError
}
