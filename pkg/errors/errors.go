// Package errors defines the coded errors returned by the order workflows
// and how each code is rendered over HTTP.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"slices"
)

// Code is the machine-readable error class returned to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeUpdateFailed  Code = "UPDATE_FAILED"
	CodeRefundFailed  Code = "REFUND_FAILED"
	CodeNoPayment     Code = "NO_PAYMENT_FOUND"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
)

// Metadata describes how a code is presented over HTTP. Codes without
// ExposeMessage only ever show PublicMessage to clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

// clientFacing codes carry messages written for the caller.
func clientFacing(status int, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, ExposeMessage: true, DetailsAllowed: details}
}

var catalog = map[Code]Metadata{
	CodeValidation:    clientFacing(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:  clientFacing(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:     clientFacing(http.StatusForbidden, "access denied", false),
	CodeNotFound:      clientFacing(http.StatusNotFound, "resource not found", false),
	CodeConflict:      clientFacing(http.StatusConflict, "conflict detected", false),
	CodeStateConflict: clientFacing(http.StatusConflict, "state transition disallowed", true),
	CodeIdempotency:   clientFacing(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:     clientFacing(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeRefundFailed:  clientFacing(http.StatusBadGateway, "refund failed", true),
	CodeNoPayment:     clientFacing(http.StatusUnprocessableEntity, "no payment found for order", false),

	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	CodeUpdateFailed:  {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "failed to update order"},
	CodeConfiguration: {HTTPStatus: http.StatusInternalServerError, PublicMessage: "service misconfigured"},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}

// Error is a coded error with an optional details payload for clients.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As. A nil err
// behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err; untyped errors are CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether err carries one of codes. Untyped errors never match.
func IsCode(err error, codes ...Code) bool {
	typed := As(err)
	return typed != nil && slices.Contains(codes, typed.code)
}

func Retryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}

// ServerFault reports whether err maps to a 5xx response. Nil is not a fault.
func ServerFault(err error) bool {
	return err != nil && MetadataFor(CodeOf(err)).HTTPStatus >= http.StatusInternalServerError
}
