// Package errs defines the typed error kinds surfaced by compgraph
// operators. Every error that terminates a row stream is one of these
// kinds, so callers can dispatch on kind with errors.As rather than
// parsing messages.
package errs

import "fmt"

// Kind classifies why a row stream terminated early.
type Kind int

const (
	// Construction reports an invalid graph composition, such as
	// extending a sourceless graph or binding an unknown source name.
	Construction Kind = iota
	// Schema reports a missing column referenced by a key-tuple or
	// operator.
	Schema
	// Order reports a key-tuple that was not non-decreasing where a
	// reduce or join required it to be.
	Order
	// Parser reports a file source's line parser rejecting a line.
	Parser
	// IO reports a filesystem failure reading input or spill files.
	IO
	// User reports an error returned by caller-supplied mapper or
	// reducer code; panics are not recovered.
	User
)

func (k Kind) String() string {
	switch k {
	case Construction:
		return "ConstructionError"
	case Schema:
		return "SchemaError"
	case Order:
		return "OrderError"
	case Parser:
		return "ParserError"
	case IO:
		return "IoError"
	case User:
		return "UserError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type returned by every operator. Wrap
// wraps an underlying cause (e.g. an *os.PathError) without losing the
// Kind classification.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.Order) style checks against a bare Kind
// by comparing classifications rather than identity.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Error implements the error interface directly on Kind so that
// errors.Is(err, errs.Order) works without constructing an *Error.
func (k Kind) Error() string { return k.String() }

// New builds a typed error. op names the operator or component raising
// it (e.g. "reduce", "sort.spill"); msg describes what went wrong.
func New(kind Kind, op, msg string) *Error {
	observe(kind)
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds a typed error around an underlying cause, preserving it
// for errors.Unwrap / errors.As.
func Wrap(kind Kind, op, msg string, err error) *Error {
	observe(kind)
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// observe is an optional hook invoked with the Kind of every error this
// package constructs. It defaults to a no-op so errs stays free of any
// ambient-instrumentation dependency; SetObserver lets a higher-level
// package (see diag.Wire) register itself without errs importing it.
var observe = func(Kind) {}

// SetObserver installs f to be called with the Kind of every error
// built by New or Wrap from this point on. Passing nil restores the
// no-op default. Not safe to call concurrently with error construction.
func SetObserver(f func(Kind)) {
	if f == nil {
		f = func(Kind) {}
	}
	observe = f
}

// Of reports the Kind of err if it (or something it wraps) is an
// *Error, and false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// as is a tiny indirection over errors.As kept local to avoid importing
// the standard errors package purely for this one call in Of.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
