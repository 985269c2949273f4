package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure the way the transaction engine's
// callers need to react to it (§7).
type ErrorKind string

const (
	KindUnauthorized   ErrorKind = "unauthorized"
	KindNotFound       ErrorKind = "not_found"
	KindMalformedInput ErrorKind = "malformed_input"
	KindInvalidInput   ErrorKind = "invalid_input"
	KindBalance        ErrorKind = "balance"
	KindInternal       ErrorKind = "internal"
)

// Error is the engine's error type. Kind drives HTTP status mapping at
// the handler boundary; Details carries per-field validation failures
// for KindInvalidInput and is never included in the wrapped message.
type Error struct {
	Kind    ErrorKind
	Msg     string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Invalid(msg string, details ...string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg, Details: details}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrNotFound       = NewError(KindNotFound, "not found")
	ErrUnauthorized   = NewError(KindUnauthorized, "unauthorized")
	ErrMalformedInput = NewError(KindMalformedInput, "malformed input")
	ErrBalance        = NewError(KindBalance, "insufficient funds")
	ErrGidExists      = NewError(KindInternal, "transaction group already exists")
)
