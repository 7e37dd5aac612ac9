package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName      = errors.New("empty expense name")
	ErrEmptyAmount    = errors.New("empty amount")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
)

// ValidationError reports user input that cannot be applied to a ledger.
// The ledger is left unchanged whenever one is returned.
type ValidationError struct {
	Field string
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IndexError reports an expense position outside the current list.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("expense index %d out of range [0,%d)", e.Index, e.Len)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIndex reports whether err carries an *IndexError.
func IsIndex(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
