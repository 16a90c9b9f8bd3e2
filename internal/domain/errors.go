package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthRequired ErrorKind = "AuthRequired"
	KindUnsupported  ErrorKind = "Unsupported"
	KindFetchFailed  ErrorKind = "FetchFailed"
	KindForbidden    ErrorKind = "Forbidden"
	KindParseFailed  ErrorKind = "ParseFailed"
	KindInvalid      ErrorKind = "Invalid"
	KindNotFound     ErrorKind = "NotFound"
)

// Error is the error type surfaced to users. Message is safe to display;
// Err keeps the underlying cause for logs and errors.Is/As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrAuthRequired = &Error{Kind: KindAuthRequired}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrFetchFailed  = &Error{Kind: KindFetchFailed}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrParseFailed  = &Error{Kind: KindParseFailed}
	ErrInvalid      = &Error{Kind: KindInvalid}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func AuthRequired() *Error {
	return &Error{Kind: KindAuthRequired, Message: "authentication required"}
}

func Unsupported(message string) *Error {
	return &Error{Kind: KindUnsupported, Message: message}
}

func FetchFailed(message string, err error) *Error {
	return &Error{Kind: KindFetchFailed, Message: message, Err: err}
}

func Forbidden(err error) *Error {
	return &Error{
		Kind:    KindForbidden,
		Message: "access denied: you may not have access to this file, or your session has expired; re-authenticate and try again",
		Err:     err,
	}
}

func ParseFailed(message string, err error) *Error {
	return &Error{Kind: KindParseFailed, Message: message, Err: err}
}

func Invalid(message string) *Error {
	return &Error{Kind: KindInvalid, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Message != "" {
			return de.Message
		}
		return string(de.Kind)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
