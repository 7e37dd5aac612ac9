package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("ledger not found")
	ErrTimeout    = errors.New("persistence timeout")
	ErrEmptyUser  = errors.New("empty user id")
	ErrBadUser    = errors.New("user id not usable as a key")
	ErrBadPayload = errors.New("malformed ledger document")
)

const (
	OpLoad = "load"
	OpSave = "save"
)

// PersistenceError describes a failed load or save against a backend.
// The remote system's message is kept in Err.
type PersistenceError struct {
	Op      string
	Backend string
	UserID  string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s ledger for %q: %v", e.Backend, e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Wrap returns err as a *PersistenceError unless it already is one or is nil.
func Wrap(op, backend, userID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Backend: backend, UserID: userID, Err: err}
}

// CheckKeyUserID validates a user id that becomes part of an object key or
// file path. Separators and dot segments are rejected.
func CheckKeyUserID(userID string) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return ErrEmptyUser
	case userID == "." || userID == "..",
		strings.ContainsAny(userID, "/\\"),
		strings.ContainsRune(userID, 0):
		return fmt.Errorf("%w: %q", ErrBadUser, userID)
	}
	return nil
}

// IsNotFound reports whether err means no ledger was ever saved.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
