// Package domainerrors defines the coded error type shared by services and the
// HTTP boundary. Services raise errors with a Code at the point of detection and
// the transport layer translates the Code into a status and envelope.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error category.
type Code string

const (
	// Client-correctable input problems (400).
	CodeBadRequest             Code = "bad_request"
	CodeValidation             Code = "validation_error"
	CodeInvalidInput           Code = "invalid_input"
	CodeChannelLimitExceeded   Code = "channel_limit_exceeded"
	CodeAggregateLimitExceeded Code = "aggregate_limit_exceeded"

	// Compliance rejections (403). Reason detail never leaves the server.
	CodeKYCFailed  Code = "kyc_failed"
	CodeAMLFlagged Code = "aml_flagged"

	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeRateLimited  Code = "rate_limited"

	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error carrying a Code and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a domain error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err is a domain error (at any depth).
func Is(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// HasCode reports whether the outermost domain error in the chain has code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error, or CodeInternal when
// err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
