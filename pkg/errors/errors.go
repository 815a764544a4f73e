// Package errors provides structured error types for the arcpress pipeline.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the batch pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto how the pipeline reacts to a failure:
//   - Fatal codes (missing input list, artwork directory, or template) abort
//     the entire batch before any work begins.
//   - Per-item codes (artwork lookup, glyph rendering) skip one request and
//     let the batch continue.
//   - Per-page codes (page assembly, flatten) skip or degrade one placement.
//   - MERGE_FAILED aborts only master-document creation; per-order documents
//     remain valid.
//   - VERIFY_MISMATCH is logged as critical and never stops the run.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeArtworkNotFound, "no artwork for %q", id)
//	if errors.Is(err, errors.ErrCodeArtworkNotFound) {
//	    // skip this item, continue the batch
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFlattenFailed, origErr, "flatten %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the pipeline's failure taxonomy.
const (
	// Input validation errors (fatal, batch aborts before work begins)
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"
	ErrCodeTemplateNotFound   Code = "TEMPLATE_NOT_FOUND"
	ErrCodeArtworkDirNotFound Code = "ARTWORK_DIR_NOT_FOUND"

	// Per-item errors (skip the request, continue the batch)
	ErrCodeArtworkNotFound Code = "ARTWORK_NOT_FOUND"
	ErrCodeRenderFailed    Code = "RENDER_FAILED"

	// Per-placement / per-page errors
	ErrCodePageAssembly  Code = "PAGE_ASSEMBLY"
	ErrCodeFlattenFailed Code = "FLATTEN_FAILED"

	// Master document errors
	ErrCodeMergeFailed    Code = "MERGE_FAILED"
	ErrCodeVerifyMismatch Code = "VERIFY_MISMATCH"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// fatalCodes is the input-validation class: the only errors expected to stop
// a batch outright.
var fatalCodes = map[Code]bool{
	ErrCodeInvalidInput:       true,
	ErrCodeInvalidConfig:      true,
	ErrCodeTemplateNotFound:   true,
	ErrCodeArtworkDirNotFound: true,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Fatal reports whether err belongs to the input-validation class that
// aborts an entire batch. All other codes are handled in-flight.
func Fatal(err error) bool {
	return fatalCodes[GetCode(err)]
}
