package cmd

import (
	"errors"
	"fmt"
)

// FlagError indicates bad flags or arguments. Execute prints the message
// followed by the usage of the command.
type FlagError struct {
	err error
}

func (e *FlagError) Error() string { return e.err.Error() }
func (e *FlagError) Unwrap() error { return e.err }

// FlagErrorf creates a FlagError with a formatted message.
func FlagErrorf(format string, args ...any) error {
	return &FlagError{err: fmt.Errorf(format, args...)}
}

// FlagErrorWrap wraps an existing error as a FlagError.
func FlagErrorWrap(err error) error {
	return &FlagError{err: err}
}

// ErrSilent signals that the error has already been displayed.
var ErrSilent = errors.New("silent error")
