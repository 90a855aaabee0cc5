// Package apperr defines the error taxonomy shared by the picstream managers.
//
// Every error that crosses a manager boundary carries a Kind so that the
// transport adapter can dispatch it without inspecting messages: Validation
// errors are user-correctable and must not be retried, Database and BlobStore
// errors are infrastructure failures surfaced to the caller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Validation marks bad input or a lost uniqueness race.
	Validation Kind = iota + 1

	// Database marks a table store failure.
	Database

	// BlobStore marks an object store failure.
	BlobStore

	// Internal marks an unexpected in-process failure.
	Internal
)

// Code returns the machine-readable error code for the kind. The numbering
// is wire-compatible with the original service's error enumeration; Internal
// and unknown kinds share 500.
func (k Kind) Code() int {
	switch k {
	case Validation:
		return 460
	case Database:
		return 530
	case BlobStore:
		return 540
	default:
		return 500
	}
}

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Database:
		return "database"
	case BlobStore:
		return "blobstore"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified failure with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or 0 if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsValidation reports whether err is a Validation-kind error.
func IsValidation(err error) bool {
	return KindOf(err) == Validation
}
