package identity

import (
	"errors"
)

// Provider error codes. They mirror the codes the hosted identity service
// reports so pages can pick a message per code.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeUserNotFound      = "auth/user-not-found"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeSessionExpired    = "auth/session-expired"
	CodeInternal          = "auth/internal-error"
)

// Error is a failed identity operation tagged with a provider code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidCredential = &Error{Code: CodeInvalidCredential}
	ErrEmailInUse        = &Error{Code: CodeEmailInUse}
	ErrUserNotFound      = &Error{Code: CodeUserNotFound}
	ErrInvalidEmail      = &Error{Code: CodeInvalidEmail}
	ErrWeakPassword      = &Error{Code: CodeWeakPassword}
	ErrSessionExpired    = &Error{Code: CodeSessionExpired}
)

// CodeOf returns the provider code of err, or CodeInternal for errors that
// did not come from a provider.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}
