// Package errors provides the coded error type shared by services and transports
package errors

// import as perr

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for callers and the wire
// numbers are part of the API; append only
type ErrorCode uint16

const (
	// ErrorCodeUnknown is anything unclassified
	ErrorCodeUnknown ErrorCode = iota
	// ErrorCodePanic is a panic recovered by middleware
	ErrorCodePanic
	// ErrorCodeUnavailable means a dependency (usually the model) is not ready
	ErrorCodeUnavailable
	// ErrorCodeValidation is bad input that parsed but failed checks
	ErrorCodeValidation
	// ErrorCodeJSON is a body that could not be decoded
	ErrorCodeJSON
	// ErrorCodeNotFound is a missing row or resource
	ErrorCodeNotFound
	// ErrorCodeDB is a storage failure
	ErrorCodeDB
	// ErrorCodeInference is a model failure on a well formed request
	ErrorCodeInference
)

var statusByCode = map[ErrorCode]int{
	ErrorCodeUnavailable: http.StatusServiceUnavailable,
	ErrorCodeValidation:  http.StatusBadRequest,
	ErrorCodeJSON:        http.StatusBadRequest,
	ErrorCodeNotFound:    http.StatusNotFound,
	ErrorCodeInference:   http.StatusUnprocessableEntity,
}

// HTTPStatusCode maps a code to its response status; unmapped codes are 500
func HTTPStatusCode(c ErrorCode) int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrNotFound is returned by single row helpers when nothing matched
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code, a message safe to show callers and an optional cause
type Error struct {
	code  ErrorCode
	msg   string
	cause error
}

// Wire is the JSON form of an Error
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *Error) Unwrap() error { return e.cause }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// New returns an *Error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with formatting
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches code and msg to cause; the cause stays out of the wire message
func Wrap(cause error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: cause}
}

// Wrapf is Wrap with formatting
func Wrapf(cause error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), cause: cause}
}

// JSONErrf returns an ErrorCodeJSON error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// Unavailablef returns an ErrorCodeUnavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// PanicErrf returns an ErrorCodePanic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// As finds the outermost *Error in the chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf returns the code of err, or ErrorCodeUnknown for foreign errors
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus maps any error to a response status
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// WireFrom renders err for the wire; foreign errors keep their text under ErrorCodeUnknown
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code, Message: e.msg}
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}
