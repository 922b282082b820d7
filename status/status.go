// Package status implements the return-status taxonomy described by the
// planar template-tracking core: a fixed enum of outcomes plus an error
// type that carries one of them, so callers can branch on failure class
// without parsing strings.
package status

import "fmt"

// Code is the return status of a mutating entry point.
type Code int

const (
	OK Code = iota
	Fail
	FailInvalidParameters
	FailInvalidSize
	FailInvalidObject
	FailOutOfMemory
	FailAliasedMemory
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Fail:
		return "FAIL"
	case FailInvalidParameters:
		return "FAIL_INVALID_PARAMETERS"
	case FailInvalidSize:
		return "FAIL_INVALID_SIZE"
	case FailInvalidObject:
		return "FAIL_INVALID_OBJECT"
	case FailOutOfMemory:
		return "FAIL_OUT_OF_MEMORY"
	case FailAliasedMemory:
		return "FAIL_ALIASED_MEMORY"
	default:
		return fmt.Sprintf("FAIL_UNKNOWN(%d)", int(c))
	}
}

// Error wraps a Code with a human-readable message. Numerical-failure and
// track-lost conditions are NOT reported through Error: those are
// non-fatal per the error-handling design and are surfaced only via
// log.Printf plus degraded verification counters, with the routine still
// returning (OK, nil).
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// New constructs an *Error for the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, defaulting to Fail for plain errors
// and OK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return Fail
}
