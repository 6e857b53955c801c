// Package errors provides structured error types for plcpack.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - Aggregated reporting of batch operations
//
// # Error Codes
//
// Codes map onto the failure taxonomy of the package manager:
//   - PACKAGE_NOT_FOUND: no package server could resolve a reference
//   - CHECKSUM_MISMATCH: a downloaded artifact did not match its SHA-256
//   - MALFORMED_RESPONSE: a server payload or binary artifact could not be parsed
//   - LOGIN_FAILED: a package server rejected the credentials
//   - ARTIFACT_MISSING: an artifact or license file is absent from the local cache
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidReference, "malformed reference %q", s)
//	if errors.Is(err, errors.ErrCodeInvalidReference) {
//	    // Handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidPackage   Code = "INVALID_PACKAGE"
	ErrCodeInvalidManifest  Code = "INVALID_MANIFEST"
	ErrCodeInvalidReference Code = "INVALID_REFERENCE"
	ErrCodeInvalidVersion   Code = "INVALID_VERSION"
	ErrCodeInvalidPath      Code = "INVALID_PATH"

	// Resolution and dependency errors
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeDependencyCycle Code = "DEPENDENCY_CYCLE"
	ErrCodeDependencyDepth Code = "DEPENDENCY_DEPTH"
	ErrCodeConflict        Code = "CONFLICT"

	// Transfer errors
	ErrCodeChecksumMismatch  Code = "CHECKSUM_MISMATCH"
	ErrCodeMalformedResponse Code = "MALFORMED_RESPONSE"
	ErrCodeArtifactMissing   Code = "ARTIFACT_MISSING"
	ErrCodeDecode            Code = "DECODE"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Authentication errors
	ErrCodeLoginFailed  Code = "LOGIN_FAILED"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

	// Environment errors
	ErrCodeHeadless    Code = "HEADLESS"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

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
// It unwraps the error chain looking for an *Error with a matching code,
// so an outer error with a different code does not hide an inner match.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// BatchError reports the outcome of an operation that attempted every item
// of a batch. It is returned once, after all items were processed.
type BatchError struct {
	Op     string  // Operation name, e.g. "add"
	Total  int     // Number of items attempted
	Errors []error // One entry per failed item
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d items failed", e.Op, len(e.Errors), e.Total)
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(UserMessage(err))
	}
	return b.String()
}

// Unwrap exposes every item error to errors.Is/As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// Batch collects per-item failures of a batch operation.
// The zero value is not usable; create one with NewBatch.
type Batch struct {
	op    string
	total int
	errs  []error
}

// NewBatch starts collecting failures for op.
func NewBatch(op string) *Batch {
	return &Batch{op: op}
}

// Record counts one attempted item and remembers err if it is non-nil.
func (b *Batch) Record(err error) {
	b.total++
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

// RecordItem is like Record but prefixes a failure with the item it
// belongs to, keeping its code.
func (b *Batch) RecordItem(item string, err error) {
	if err != nil {
		err = Wrap(GetCode(err), err, "%s: %s", item, UserMessage(err))
	}
	b.Record(err)
}

// Failed returns the number of failed items so far.
func (b *Batch) Failed() int { return len(b.errs) }

// Err returns a *BatchError if any item failed, nil otherwise.
func (b *Batch) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return &BatchError{Op: b.op, Total: b.total, Errors: b.errs}
}

// Join combines errors like the standard library's errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
