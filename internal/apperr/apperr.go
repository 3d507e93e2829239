// Package apperr carries coded errors for the notification layer. A code
// identifies the failure class so callers can branch on it without string
// matching, while the wrapped cause is kept for logs.
package apperr

import (
	"errors"
	"fmt"
)

type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode returns the error code, or CodeInternal for foreign errors.
func GetCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

const (
	// Transport: 20000-20999. Connection and subscription failures on the
	// push service. Never fatal; the next subscribe starts fresh.
	CodeTransportConnect   = 20001
	CodeTransportSubscribe = 20002

	// Validation: 21000-21999. Guest session PIN/token rejected by the
	// server; forces re-authentication.
	CodePinRejected    = 21001
	CodeSessionInvalid = 21002
	CodeSessionExpired = 21003

	// Sync: 22000-22999. REST calls that reconcile local state with the
	// server; local state stays in its optimistic form.
	CodeMarkReadFailed = 22001
	CodeBaselineFetch  = 22002

	CodeInternal = 50001
)

var (
	ErrTransportConnect   = New(CodeTransportConnect, "push transport connection failed")
	ErrTransportSubscribe = New(CodeTransportSubscribe, "channel subscription failed")

	ErrPinRejected    = New(CodePinRejected, "pin rejected")
	ErrSessionInvalid = New(CodeSessionInvalid, "session invalid")
	ErrSessionExpired = New(CodeSessionExpired, "session expired")

	ErrMarkReadFailed = New(CodeMarkReadFailed, "mark-read acknowledgement failed")
	ErrBaselineFetch  = New(CodeBaselineFetch, "baseline fetch failed")
)
