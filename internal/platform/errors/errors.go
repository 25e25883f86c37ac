package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies an application error.
type Code string

const (
	ErrCodeInvalidInput         Code = "INVALID_INPUT"
	ErrCodeNotFound             Code = "NOT_FOUND"
	ErrCodeConflict             Code = "CONFLICT"
	ErrCodeUnavailable          Code = "UPSTREAM_UNAVAILABLE"
	ErrCodeVerificationMismatch Code = "VERIFICATION_MISMATCH"
	ErrCodeInternal             Code = "INTERNAL"
)

// AppError is the error type returned across service boundaries.
type AppError struct {
	Code    Code
	Message string
	Field   string
	Fields  []string
	Err     error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an error with the given code.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NotFound reports an absent or soft-deleted record.
func NotFound(kind, id string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

// InvalidInput reports a caller fault on a single field.
func InvalidInput(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, Field: field}
}

// Unavailable reports a store that could not be reached.
func Unavailable(source string, err error) *AppError {
	return &AppError{Code: ErrCodeUnavailable, Message: source + " unavailable", Err: err}
}

// VerificationMismatch reports fields whose persisted value differs from
// the value that was written.
func VerificationMismatch(kind, id string, fields []string) *AppError {
	return &AppError{
		Code:    ErrCodeVerificationMismatch,
		Message: fmt.Sprintf("%s %s persisted values differ from written values", kind, id),
		Fields:  fields,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeVerificationMismatch:
		return http.StatusConflict
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
