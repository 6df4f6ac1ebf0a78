package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a generation failure. Every error that leaves Generate
// carries exactly one Kind.
type Kind string

const (
	KindMissingInput Kind = "missing_input"
	KindDataRead     Kind = "data_read"
	KindTemplateRead Kind = "template_read"
	KindRowRender    Kind = "row_render"
	KindEmptyArchive Kind = "empty_archive"
	KindUnexpected   Kind = "unexpected"
)

// Error is the classified error returned by the generation pipeline.
// Msg is safe to show to users; Err holds the underlying cause for logs.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrEmptyArchive) works
// for any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrMissingInput = &Error{Kind: KindMissingInput}
	ErrDataRead     = &Error{Kind: KindDataRead}
	ErrTemplateRead = &Error{Kind: KindTemplateRead}
	ErrEmptyArchive = &Error{Kind: KindEmptyArchive}
	ErrUnexpected   = &Error{Kind: KindUnexpected}
)

func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func missingInput(msg string) *Error {
	return newError(KindMissingInput, "validate", msg, nil)
}

func dataReadError(msg string, cause error) *Error {
	return newError(KindDataRead, "read data", msg, cause)
}

func templateReadError(msg string, cause error) *Error {
	return newError(KindTemplateRead, "open template", msg, cause)
}

// KindOf reports the kind of err. Errors that were never classified are
// KindUnexpected; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var re *RowError
	if errors.As(err, &re) {
		return KindRowRender
	}
	return KindUnexpected
}

// classify wraps anything that is not already a *Error as KindUnexpected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindUnexpected, op, "generation cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindUnexpected, op, "generation timed out", err)
	}
	return newError(KindUnexpected, op, "unexpected failure", err)
}

// RowError is a per-row render failure. It is recorded in the archive and
// never aborts the batch.
type RowError struct {
	Index       int
	Message     string
	MissingKeys []string
	Err         error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index+1, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
