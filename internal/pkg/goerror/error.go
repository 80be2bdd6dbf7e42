// Package goerror carries the error taxonomy shared by every layer: sentinel
// repository errors plus a structured Error that the router maps onto HTTP.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by repositories when a row or key does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned by repositories on unique constraint violations.
	ErrConflict = errors.New("resource conflict")
)

// Type groups errors by who is at fault.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "ERROR_TYPE_SERVER"
	case TypeBusiness:
		return "ERROR_TYPE_BUSINESS"
	case TypeValidation:
		return "ERROR_TYPE_VALIDATION"
	default:
		return "ERROR_TYPE_UNKNOWN"
	}
}

// Code is a stable machine readable reason.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	CodeTooManyRequest
	CodeUnauthorized
	CodeForbidden
	CodeTimeout
	// CodeExpired marks a resource whose validity window has elapsed.
	CodeExpired
)

var codeMeta = map[Code]struct {
	name   string
	status int
}{
	CodeInternal:       {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat:  {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:   {"ERROR_CODE_INVALID_INPUT", http.StatusUnprocessableEntity},
	CodeNotFound:       {"ERROR_CODE_NOT_FOUND", http.StatusNotFound},
	CodeConflict:       {"ERROR_CODE_CONFLICT", http.StatusConflict},
	CodeTooManyRequest: {"ERROR_CODE_TOO_MANY_REQUESTS", http.StatusTooManyRequests},
	CodeUnauthorized:   {"ERROR_CODE_UNAUTHORIZED", http.StatusUnauthorized},
	CodeForbidden:      {"ERROR_CODE_FORBIDDEN", http.StatusForbidden},
	CodeTimeout:        {"ERROR_CODE_TIMEOUT", http.StatusRequestTimeout},
	CodeExpired:        {"ERROR_CODE_EXPIRED", http.StatusGone},
}

func (c Code) String() string {
	if m, ok := codeMeta[c]; ok {
		return m.name
	}

	return codeMeta[CodeInternal].name
}

// Error is the structured error returned from usecases.
type Error struct {
	cause   error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return e.cause.Error()
	case e.msg != "":
		return e.msg
	case e.errType == TypeValidation:
		return "Validation violation"
	case e.errType == TypeBusiness:
		return "Business rule violation"
	default:
		return "Internal error"
	}
}

// String is the verbose form used in logs.
func (e *Error) String() string {
	return fmt.Sprintf("type=%s code=%s msg=%q cause=%v", e.errType, e.code, e.msg, e.cause)
}

// Msg is the user facing message.
func (e *Error) Msg() string { return e.msg }

func (e *Error) Type() Type { return e.errType }

func (e *Error) Code() Code { return e.code }

// Fields holds per-field validation messages.
func (e *Error) Fields() map[string]string { return e.fields }

func (e *Error) Unwrap() error { return e.cause }

// StatusCode maps the code onto an HTTP status.
func (e *Error) StatusCode() int {
	if m, ok := codeMeta[e.code]; ok {
		return m.status
	}

	return http.StatusInternalServerError
}

// NewServer wraps an unexpected failure. The cause is never shown to clients.
func NewServer(err error) error {
	return &Error{cause: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewBusiness reports a broken business rule with a message safe to show verbatim.
func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// NewInvalidInput wraps a validator error, or builds field errors from
// key/value pairs when err is nil.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return &Error{cause: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}
	}

	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	fields := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}

	return &Error{msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput, fields: fields}
}

// NewInvalidFormat reports a malformed request body.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 && msgs[0] != "" {
		msg = msgs[0]
	}

	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}

// CodeOf returns the Code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.code
	}

	return CodeInternal
}
