// Package dberror defines the kinds of failure returned by the MirrorManager store.
//
// Callers inspect them with errors.Is instead of matching driver messages.
package dberror

import (
	"fmt"
)

// dbError is a kind of database failure. Errors derived from a kind through Msg
// or Err still match that kind with errors.Is.
type dbError struct {
	msg string
	err error
}

func (e *dbError) Error() string {
	return e.msg
}

func (e *dbError) Unwrap() error {
	return e.err
}

// Msg returns an error of the same kind carrying a more specific message.
func (e *dbError) Msg(msg string) *dbError {
	return &dbError{
		msg: msg,
		err: e,
	}
}

// Msgf is Msg with formatting.
func (e *dbError) Msgf(format string, args ...any) *dbError {
	return e.Msg(fmt.Sprintf(format, args...))
}

// Err attaches the underlying cause, usually a driver error.
func (e *dbError) Err(err error) error {
	if err == nil {
		return e
	}
	return fmt.Errorf("%w: %w", e, err)
}

func New(msg string) *dbError {
	return &dbError{
		msg: msg,
		err: nil,
	}
}

var (
	ErrDatabase      = New("db error")
	ErrNotFound      = ErrDatabase.Msg("not found")
	ErrAlreadyExists = ErrDatabase.Msg("already exists")
	ErrInconsistent  = ErrDatabase.Msg("data inconsistency")
	ErrInvalidInput  = ErrDatabase.Msg("invalid input")
)
