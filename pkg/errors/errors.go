package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable error identifier sent to clients.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodePaymentVerification Code = "PAYMENT_VERIFICATION_FAILED"
	CodePartialFailure      Code = "PARTIAL_FAILURE"
	CodeTimeout             Code = "TIMEOUT"
	CodeInvalidResponse     Code = "INVALID_RESPONSE"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

// Metadata drives how an error code is rendered over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed exposes Error.Details in the response body.
	DetailsAllowed bool
	// MessageVisible replaces PublicMessage with the caller's message.
	MessageVisible bool
}

// client errors show their own message; server-side ones only show the public text.
func client(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, MessageVisible: true}
}

func server(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          client(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:        client(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:           client(http.StatusForbidden, "access denied", false),
	CodeNotFound:            client(http.StatusNotFound, "resource not found", false),
	CodeConflict:            client(http.StatusConflict, "conflict detected", true),
	CodeIdempotency:         client(http.StatusConflict, "idempotency key reused", true),
	CodePaymentVerification: client(http.StatusPaymentRequired, "payment could not be verified", true),
	CodePartialFailure:      client(http.StatusBadGateway, "payment succeeded but the order could not be recorded", true),
	CodeRateLimit:           client(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeTimeout: {
		HTTPStatus:     http.StatusGatewayTimeout,
		Retryable:      true,
		PublicMessage:  "upstream request timed out",
		DetailsAllowed: true,
		MessageVisible: true,
	},
	CodeInvalidResponse: server(http.StatusBadGateway, "unexpected response from upstream service"),
	CodeInternal:        server(http.StatusInternalServerError, "internal server error"),
	CodeDependency:      server(http.StatusServiceUnavailable, "dependency unavailable"),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicMessage is the text a client may see for err. Untyped errors and server-side
// codes yield only the code's public message.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	meta := MetadataFor(typed.code)
	if meta.MessageVisible && typed.message != "" {
		return typed.message
	}
	return meta.PublicMessage
}

// Error is a coded error with an optional cause and client-facing details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails sets the payload returned to clients when the code allows it.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
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

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain carries code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
