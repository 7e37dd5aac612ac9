// Package auth turns a credential pair into a user id.
//
// The ledger only needs the id; how credentials are checked is up to the
// Authenticator. LocalAuthenticator keeps bcrypt hashes in a YAML file.
package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentifierTaken    = errors.New("identifier already registered")
	ErrEmptyCredentials   = errors.New("identifier and secret are required")
	ErrNotSignedIn        = errors.New("not signed in")
)

const (
	OpSignIn  = "sign in"
	OpSignUp  = "sign up"
	OpSignOut = "sign out"
)

// Error reports a failed auth operation for an identifier.
type Error struct {
	Op         string
	Identifier string
	Err        error
}

func (e *Error) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Authenticator is the session collaborator the presentation layer talks to.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, secret string) (string, error)
	SignUp(ctx context.Context, identifier, secret string) (string, error)
	SignOut(ctx context.Context) error
	CurrentUser() (string, bool)
}
