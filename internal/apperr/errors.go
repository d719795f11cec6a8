// Package apperr defines the client's error taxonomy. Every failure that
// crosses a network boundary is reported as an *Error whose Kind is one of the
// sentinels below, so callers can branch with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth: the backend rejected login or registration credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrTransport: network failure, or a non-2xx response without an interpretable body.
	ErrTransport = errors.New("transport failure")
	// ErrValidation: required user input was missing; no request was sent.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream: a service answered with a well-formed error payload.
	ErrUpstream = errors.New("upstream service error")
)

// Error carries the context of a failed operation. StatusCode and Body are
// zero when the failure happened before a response was received.
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Body       string
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	switch {
	case e.Detail != "":
		b.WriteString(": ")
		b.WriteString(e.Detail)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Message is the text a user should see for e: the server diagnostic when
// there is one, the cause otherwise.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

func Validation(op, detail string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Detail: detail}
}

// StatusCode returns the HTTP status carried anywhere in err's chain, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// UserMessage returns a short diagnostic for err suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
