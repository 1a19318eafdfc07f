// Package apperr defines the coded errors shared by all services in this
// repository. Handlers map codes to HTTP statuses; services never let a raw
// driver error cross the package boundary — persistence failures are wrapped
// with CodeInternal.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNoMatchingWorkflow Code = "NO_MATCHING_WORKFLOW"
	CodeUnsupported        Code = "UNSUPPORTED"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded application error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %q not found", resource, id))
}

// InvalidState reports an action attempted against a resource in the wrong state.
func InvalidState(message string) *Error {
	return New(CodeInvalidState, message)
}

// Unauthorized reports a caller lacking rights for the attempted action.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, message string) *Error {
	return New(CodeInvalidInput, fmt.Sprintf("%s: %s", field, message))
}

// NoMatchingWorkflow reports that submission found no workflow whose
// conditions accept the request.
func NoMatchingWorkflow(entityType string) *Error {
	return New(CodeNoMatchingWorkflow, fmt.Sprintf("no suitable workflow for entity type %q", entityType))
}

// Unsupported reports a configuration the engine cannot act on.
func Unsupported(message string) *Error {
	return New(CodeUnsupported, message)
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
// A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
