// Package apperr defines the error kinds shared by the sync jobs, the
// production service and the HTTP layer. Handlers map kinds to status codes
// with HTTPStatus and never inspect error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: the order or resource is absent, or is in the wrong state
	// for the requested transition.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument: missing or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstreamUnavailable: ERP or authenticity API timeout, network
	// failure, non-2xx status or unparseable body.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStorage: local persistence failure.
	ErrStorage = errors.New("storage error")
)

// Error carries a kind, an operator-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func Upstream(err error, format string, args ...any) error {
	return &Error{Kind: ErrUpstreamUnavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Storage wraps a persistence failure. A nil err yields nil so it can wrap
// gorm results inline.
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: ErrStorage, Msg: op, Err: err}
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the operator-facing text for err: the message of the
// outermost classified error for 4xx kinds, the full chain otherwise.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" && (ae.Kind == ErrNotFound || ae.Kind == ErrInvalidArgument) {
		return ae.Msg
	}
	return err.Error()
}
