// Package errors implements an error type that carries an interpretable
// kind and an optional chain of causes. Errors are constructed with E, which
// interprets its arguments according to their types, and can be inspected
// with Is and Match without relying on sentinel values.
package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/lucabaldini/baldaquin/log"
)

// Separator is inserted between chained errors when an *Error is formatted.
var Separator = ":\n\t"

// Kind classifies an error so that callers can react to it without string
// matching. The DAQ-specific kinds mirror the error taxonomy in the core
// design: declaration errors, decode errors, sink errors, buffer errors,
// run-control errors and configuration errors each get their own Kind.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// Canceled indicates a context cancellation.
	Canceled
	// Timeout indicates an operation timed out.
	Timeout
	// TooManyTries indicates a retry policy was exhausted.
	TooManyTries
	// NotExist indicates a missing resource.
	NotExist
	// Exists indicates a resource that was expected to be absent already exists.
	Exists
	// Invalid indicates invalid caller-supplied arguments.
	Invalid

	// LayoutError indicates an unrecognized packet byte-order/alignment code.
	LayoutError
	// FormatError indicates an unrecognized packet field format code.
	FormatError
	// FieldMismatch indicates an expected-constant field did not match at unpack time.
	FieldMismatch
	// SizeMismatch indicates a byte slice did not match a packet type's fixed size.
	SizeMismatch
	// TruncatedFile indicates a packet file ended mid-record.
	TruncatedFile

	// FileExists indicates a sink refused to overwrite an existing file.
	FileExists
	// FirstSinkMustBeCanonical indicates a projection was attached as a buffer's first sink.
	FirstSinkMustBeCanonical
	// NoSinks indicates a flush was attempted with no attached sinks.
	NoSinks
	// WrongType indicates a value put into a buffer was not a packet instance.
	WrongType
	// BufferSizingError indicates max_size <= flush_size.
	BufferSizingError

	// InvalidTransition indicates a run-control state transition outside the allowed graph.
	InvalidTransition
	// AppNotLoaded indicates an operation required a loaded user application.
	AppNotLoaded
	// WorkerJoinTimeout indicates the acquisition thread failed to join in time.
	WorkerJoinTimeout
	// RunEndMarkerMismatch indicates the expected end-of-run marker byte did not appear.
	RunEndMarkerMismatch

	// InvalidType indicates a configuration value's type did not match its parameter.
	InvalidType
	// InvalidChoice indicates a configuration value was outside its allowed choices.
	InvalidChoice
	// NumberTooSmall indicates a configuration value fell below its minimum.
	NumberTooSmall
	// NumberTooLarge indicates a configuration value exceeded its maximum.
	NumberTooLarge
	// InvalidStep indicates a configuration value did not land on an allowed step.
	InvalidStep

	maxKind
)

var kinds = map[Kind]string{
	Other:                    "unknown error",
	Canceled:                 "operation was canceled",
	Timeout:                  "operation timed out",
	TooManyTries:             "retry policy exhausted",
	NotExist:                 "resource does not exist",
	Exists:                   "resource already exists",
	Invalid:                  "invalid argument",
	LayoutError:              "invalid packet layout character",
	FormatError:              "invalid packet format character",
	FieldMismatch:            "expected-constant field mismatch",
	SizeMismatch:             "packet size mismatch",
	TruncatedFile:            "truncated packet file",
	FileExists:               "sink file already exists",
	FirstSinkMustBeCanonical: "first sink must be canonical",
	NoSinks:                  "no sinks attached",
	WrongType:                "wrong packet type",
	BufferSizingError:        "max_size must be greater than flush_size",
	InvalidTransition:        "invalid state transition",
	AppNotLoaded:             "no user application loaded",
	WorkerJoinTimeout:        "worker join timed out",
	RunEndMarkerMismatch:     "end-of-run marker mismatch",
	InvalidType:              "invalid parameter type",
	InvalidChoice:            "invalid parameter choice",
	NumberTooSmall:           "number too small",
	NumberTooLarge:           "number too large",
	InvalidStep:              "invalid parameter step",
}

// kindStdErrs maps some Kinds to their standard-library equivalent, so that
// errors.Is keeps working against values returned by this package.
var kindStdErrs = map[Kind]error{
	Canceled: context.Canceled,
	NotExist: os.ErrNotExist,
	Exists:   os.ErrExist,
	Invalid:  os.ErrInvalid,
}

// String returns a human-readable description of the kind.
func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the standard error type used throughout baldaquin. It carries a
// Kind, an optional message, and an optional cause; chained Errors print
// with Separator between each link.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E constructs a new error from its arguments. Arguments are interpreted by
// type: a Kind sets the Kind, a string is appended to the message (multiple
// strings are joined with a space), an *Error is copied and chained as the
// cause, and any other error is chained as the cause directly. At least one
// argument is required.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, arg)
			return &Error{Kind: Invalid, Message: fmt.Sprintf("unknown type %T, value %v in error call", arg, arg)}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	if prev, ok := e.Err.(*Error); ok && e.Kind == Other {
		e.Kind = prev.Kind
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Unwrap returns the error's cause, if any, so that the standard library's
// errors.Is and errors.As work with *Error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is equivalent to one of e's standard-library
// mappings, letting *Error interoperate with errors.Is against, e.g.,
// os.ErrExist.
func (e *Error) Is(err error) bool {
	return err != nil && err == kindStdErrs[e.Kind]
}

// Recover converts err into an *Error, wrapping it with Kind Other if it is
// not already one.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Is reports whether err, or any error in its chain, has the given Kind.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// Match reports whether every nonempty field in err1 matches the
// corresponding field in err2, recursing through chained causes. Match is
// meant to ease asserting on errors in tests.
func Match(err1, err2 error) bool {
	e1, e2 := Recover(err1), Recover(err2)
	if e1 == nil || e2 == nil {
		return e1 == e2
	}
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		return e1.Err.Error() == e2.Err.Error()
	}
	return true
}

// New is synonymous with the standard library's errors.New, provided so
// that callers need only import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
