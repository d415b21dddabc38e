package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the closed set of failure categories a pipeline stage can report
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindParse
	KindConfig
	KindSplit
	KindExtract
	KindWrite
	KindLock
)

// String returns the canonical name of the kind as persisted in job state
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "INPUT"
	case KindParse:
		return "PARSE"
	case KindConfig:
		return "CONFIG"
	case KindSplit:
		return "SPLIT"
	case KindExtract:
		return "EXTRACT"
	case KindWrite:
		return "WRITE"
	case KindLock:
		return "LOCK"
	default:
		return "UNKNOWN"
	}
}

// Error is a stage-scoped error carrying its kind and, when known, the
// offending assay key
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface. The message is returned verbatim so
// that callers see the same reason string that is persisted in job state.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithKey records the assay key the error refers to
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// KindOf reports the kind of err, looking through wrapped errors.
// Errors not produced by this package are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// KeyOf returns the assay key attached to err, if any
func KeyOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Key
	}
	return ""
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Parse wraps an extraction engine failure
func Parse(err error, message string) *Error { return Wrap(KindParse, err, message) }

// Config creates a configuration error
func Config(format string, args ...interface{}) *Error { return Newf(KindConfig, format, args...) }

// Split creates a content split error
func Split(format string, args ...interface{}) *Error { return Newf(KindSplit, format, args...) }

// Extract creates a field extraction error
func Extract(format string, args ...interface{}) *Error { return Newf(KindExtract, format, args...) }
