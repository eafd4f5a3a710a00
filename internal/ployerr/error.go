// Package ployerr gives every fallible stage of the pipeline (scanning,
// compiling, running) a common error shape: a github.com/pkg/errors chain
// for the message and stack trace, tagged with a Kind so a caller like the
// cmd/ployvm CLI can decide how to report a failure without string
// matching.
package ployerr

import "github.com/pkg/errors"

// Kind classifies where in the pipeline an error originated.
type Kind int

const (
	// Unknown is the zero value; only errors constructed outside this
	// package (or through New/Wrap with no Kind set) should carry it.
	Unknown Kind = iota
	LexError
	CompileError
	RuntimeTypeError
	RuntimeArityError
	RuntimeBoundsError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case CompileError:
		return "compile error"
	case RuntimeTypeError:
		return "runtime type error"
	case RuntimeArityError:
		return "runtime arity error"
	case RuntimeBoundsError:
		return "runtime bounds error"
	default:
		return "error"
	}
}

// Error pairs a Kind with an underlying github.com/pkg/errors chain.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

// Cause supports github.com/pkg/errors.Cause, unwinding past Wrap layers to
// whatever non-ployerr error started the chain.
func (e *Error) Cause() error { return errors.Cause(e.cause) }

// New builds a fresh Error of the given kind from a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, cause: errors.New(message)}
}

// Newf builds a fresh Error of the given kind from a format string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap tags err with kind, annotating it with message. A nil err wraps to
// nil, so call sites can wrap unconditionally at a function's return.
// If err is already a *Error, its Kind is preserved rather than overwritten,
// since the innermost stage is the one that best knows what went wrong.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		return &Error{Kind: existing.Kind, cause: errors.Wrap(existing.cause, message)}
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, message)}
}

// Wrapf is Wrap with a format string.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		return &Error{Kind: existing.Kind, cause: errors.Wrapf(existing.cause, format, args...)}
	}
	return &Error{Kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// KindOf extracts err's Kind, or Unknown if err is not (or does not wrap) a
// *Error.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if k, ok := err.(*Error); ok {
			e = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return Unknown
	}
	return e.Kind
}
