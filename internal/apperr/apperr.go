// Package apperr carries user-facing checkout errors with a machine-readable kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the presentation layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindStock      Kind = "stock"
	KindGateway    Kind = "gateway"
	KindNetwork    Kind = "network"
	KindInFlight   Kind = "in_flight"
	KindState      Kind = "state"
	KindEmptyCart  Kind = "empty_cart"
	KindInternal   Kind = "internal"
)

// Error is a single user-facing message plus its kind.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the user can retry the same action unchanged.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGateway, KindNetwork, KindInFlight:
		return true
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation returns a validation error with per-field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Please correct the highlighted fields.", Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain. Errors of any other type are
// wrapped as internal with a generic message.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, "Something went wrong. Please try again.", err)
}
