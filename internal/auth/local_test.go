package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"saldo/internal/log"
)

func newTestAuth(t *testing.T) (*LocalAuthenticator, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds", "credentials.yaml")
	return NewLocal(path, log.Discard()).WithCost(bcrypt.MinCost), path
}

func TestSignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	a, path := newTestAuth(t)

	id, err := a.SignUp(ctx, "Alice@Example.com", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a user id")
	}
	if cur, ok := a.CurrentUser(); !ok || cur != id {
		t.Fatalf("sign up should sign in, got %q %v", cur, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Fatal("secret stored in clear text")
	}

	if err := a.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.CurrentUser(); ok {
		t.Fatal("still signed in after sign out")
	}
	if err := a.SignOut(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	again, err := a.SignIn(ctx, "  alice@example.com ", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatalf("sign in returned %q, want %q", again, id)
	}
}

func TestSignUpRejects(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)

	for _, tc := range []struct{ id, secret string }{{"", "x"}, {"bob", ""}, {"   ", "x"}} {
		_, err := a.SignUp(ctx, tc.id, tc.secret)
		var ae *Error
		if !errors.As(err, &ae) || !errors.Is(err, ErrEmptyCredentials) || ae.Op != OpSignUp {
			t.Fatalf("%q/%q: expected empty credentials error, got %v", tc.id, tc.secret, err)
		}
	}

	if _, err := a.SignUp(ctx, "bob", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SignUp(ctx, "BOB", "other"); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("expected ErrIdentifierTaken, got %v", err)
	}
}

func TestSignInRejects(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuth(t)
	if _, err := a.SignUp(ctx, "carol", "right"); err != nil {
		t.Fatal(err)
	}
	_ = a.SignOut(ctx)

	if _, err := a.SignIn(ctx, "carol", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.SignIn(ctx, "nobody", "right"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := a.SignIn(ctx, "", ""); !errors.Is(err, ErrEmptyCredentials) {
		t.Fatalf("expected ErrEmptyCredentials, got %v", err)
	}
	if _, ok := a.CurrentUser(); ok {
		t.Fatal("failed sign in must not start a session")
	}
}

func TestSessionSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a, path := newTestAuth(t)
	id, err := a.SignUp(ctx, "dave", "pw")
	if err != nil {
		t.Fatal(err)
	}
	b := NewLocal(path, log.Discard())
	if cur, ok := b.CurrentUser(); !ok || cur != id {
		t.Fatalf("second instance should see session, got %q", cur)
	}
	ids, err := b.UserIDs()
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("UserIDs = %v, %v", ids, err)
	}
}

func TestCorruptCredentialsFile(t *testing.T) {
	a, path := newTestAuth(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("accounts: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SignIn(context.Background(), "x", "y"); err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected parse error, got %v", err)
	}
}
