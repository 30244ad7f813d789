package handlers

import (
	"errors"
	"fmt"
)

// Input errors are answered with a retry prompt and never leave HandleMessage.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidRating  = errors.New("rating is not an integer")
	ErrInvalidTime    = errors.New("notification time is not HH:MM")
)

// StorageError means a durable write or read failed. The session is left as
// it was before the input, so sending the same text again is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func isInputError(err error) bool {
	return errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrInvalidTime)
}
