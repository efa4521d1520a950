// Package apperr defines the tagged failures storymap surfaces to the UI
// shell. Every command either succeeds or returns an *Error whose Kind the
// shell can render without inspecting the message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindImport        Kind = "import"
	KindSerialization Kind = "serialization"
	KindPersistence   Kind = "persistence"
	KindBusy          Kind = "busy"
	KindNotFound      Kind = "not_found"
	KindNotReady      Kind = "not_ready"
	KindStarted       Kind = "already_started"
)

// Error is a tagged failure. Op names the command that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a tagged error.
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// Validation reports an invalid user input. No state was changed.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message, nil)
}

// Import reports a diagram the engine refused to load.
func Import(op string, cause error) *Error {
	return New(KindImport, op, "diagram import failed", cause)
}

// Serialization reports a diagram the engine could not export.
func Serialization(op string, cause error) *Error {
	return New(KindSerialization, op, "diagram export failed", cause)
}

// Persistence reports a storage failure.
func Persistence(op string, cause error) *Error {
	return New(KindPersistence, op, "storage unavailable", cause)
}

// Busy reports a diagram round-trip rejected because another is in flight.
func Busy(op string) *Error {
	return New(KindBusy, op, "another diagram operation is in progress", nil)
}

// NotFound reports a missing record.
func NotFound(op, what string) *Error {
	return New(KindNotFound, op, what+" not found", nil)
}

// NotReady reports a command issued before the session was started.
func NotReady(op string) *Error {
	return New(KindNotReady, op, "session not started", nil)
}

// AlreadyStarted reports a second Start on a running session.
func AlreadyStarted(op string) *Error {
	return New(KindStarted, op, "session already started", nil)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when
// err carries no tag.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
