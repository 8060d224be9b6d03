// Package apperr defines the error categories operations report to callers.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindBackend Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "backend"
	}
}

// HTTPStatus maps a kind to the response status used at the handler boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindBackend {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Backend wraps a store failure. The store's message is kept verbatim.
func Backend(msg string, err error) error {
	return &Error{Kind: KindBackend, Message: msg, Err: err}
}

// KindOf reports the category of err. Untyped errors are backend errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// Is reports whether err belongs to kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
