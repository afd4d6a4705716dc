package litetable

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation marks a malformed chunk sequence: out-of-order
	// reset/commit, an incomplete value at commit, a non-increasing row key,
	// or a chunk that advances nothing.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrSessionExhausted marks a logical read that ran out of retry budget
	// (attempts or elapsed time) before completing.
	ErrSessionExhausted = errors.New("session retry budget exhausted")
)

// Done is returned by Next when the row sequence has ended cleanly. It is a
// sentinel, not a failure.
var Done = errors.New("litetable: no more rows")

// Error wraps a sentinel error with additional context
type Error struct {
	err     error  // The underlying sentinel error
	context string // Additional error context
}

// Error satisfies the error interface
func (e *Error) Error() string {
	if e.context == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err.Error(), e.context)
}

// Unwrap implements the errors.Unwrap interface for compatibility with errors.Is/As
func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates a new error wrapping the given sentinel with context
func NewError(err error, format string, args ...interface{}) *Error {
	return &Error{
		err:     err,
		context: fmt.Sprintf(format, args...),
	}
}
