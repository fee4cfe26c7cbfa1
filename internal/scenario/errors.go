package scenario

import (
	"errors"
	"fmt"
)

// AssertionError reports a post-condition that did not hold, such as
// a landing outside the configured distance band. It is recorded in
// the subtest result, never silently dropped.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return e.Msg }

// Assertf builds an AssertionError from a format string.
func Assertf(format string, args ...any) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError reports that the vehicle never reached the state
// required to begin a step. It is fatal to the current sub-scenario.
type PreconditionError struct {
	Msg string
	Err error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// IsAssertion reports whether err is, or wraps, an assertion failure.
func IsAssertion(err error) bool {
	var a *AssertionError
	return errors.As(err, &a)
}

// IsPrecondition reports whether err is, or wraps, a precondition
// failure.
func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}
