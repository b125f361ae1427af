// Package apperr defines the failure kinds surfaced to users.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindFetch
	KindWrite
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindFetch:
		return "fetch"
	case KindWrite:
		return "write"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// Error carries a user-visible message next to the underlying cause.
type Error struct {
	Kind     Kind
	Message  string
	NotFound bool
	Conflict bool
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Auth(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Err: err}
}

// AccountExists is an auth error for duplicate sign-ups.
func AccountExists(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Conflict: true, Err: err}
}

func Fetch(msg string, err error) *Error {
	return &Error{Kind: KindFetch, Message: msg, Err: err}
}

func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindFetch, Message: msg, NotFound: true, Err: err}
}

func Write(msg string, err error) *Error {
	return &Error{Kind: KindWrite, Message: msg, Err: err}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf reports the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-visible text for err.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindAuth:
		if e.Conflict {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindFetch:
		if e.NotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case KindWrite:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
