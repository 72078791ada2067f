// Package mlterr defines the flat error taxonomy used across the engine (§7).
// The engine's registry lookups return *Error values built with New; most
// other packages return plain wrapped errors (fmt.Errorf), not *Error.
package mlterr

import "fmt"

// Kind is one of the flat, integer-sized error categories from §7.
type Kind int

// Error kinds.
const (
	OK Kind = iota
	BadArgument
	ParseError
	NotFound
	IOError
	FormatUnsupported
	AllocationFailed
	Fatal
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case BadArgument:
		return "bad-argument"
	case ParseError:
		return "parse-error"
	case NotFound:
		return "not-found"
	case IOError:
		return "io-error"
	case FormatUnsupported:
		return "format-unsupported"
	case AllocationFailed:
		return "allocation-failed"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and, where relevant, the
// offending service id and frame position (§7's "user-visible failure" line).
type Error struct {
	Kind     Kind
	Service  string
	Position int64
	Err      error
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s", msg), Position: -1}
}

// Wrap constructs an Error wrapping err.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err, Position: -1}
}

// WithService annotates the error with the offending service id.
func (e *Error) WithService(id string) *Error {
	e.Service = id
	return e
}

// WithPosition annotates the error with the offending frame position.
func (e *Error) WithPosition(p int64) *Error {
	e.Position = p
	return e
}

func (e *Error) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Position >= 0 {
		return fmt.Sprintf("%s: service %q: frame %d: %v", e.Kind, e.Service, e.Position, e.Err)
	}
	return fmt.Sprintf("%s: service %q: %v", e.Kind, e.Service, e.Err)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same Kind, so callers can do
// errors.Is(err, mlterr.NotFound) style checks via a sentinel constructed
// with just a Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Err == nil {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinel returns a bare *Error usable only with errors.Is to test Kind.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
