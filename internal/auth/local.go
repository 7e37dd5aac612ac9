package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"saldo/internal/log"
)

// account is one entry of the credentials file.
type account struct {
	UserID    string    `yaml:"user_id"`
	Hash      string    `yaml:"hash"`
	CreatedAt time.Time `yaml:"created_at"`
}

type credentialsFile struct {
	Accounts map[string]account `yaml:"accounts"`
	Current  string             `yaml:"current,omitempty"`
}

// LocalAuthenticator stores accounts in a YAML file. The signed-in user is
// remembered in the same file so one-shot CLI commands share a session.
type LocalAuthenticator struct {
	path   string
	cost   int
	mu     sync.Mutex
	logger *log.Logger
}

// NewLocal uses the credentials file at path; it is created on first sign up.
func NewLocal(path string, logger *log.Logger) *LocalAuthenticator {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &LocalAuthenticator{
		path:   path,
		cost:   bcrypt.DefaultCost,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *LocalAuthenticator) WithCost(cost int) *LocalAuthenticator {
	a.cost = cost
	return a
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// SignUp registers identifier with secret, signs it in and returns a fresh
// user id.
func (a *LocalAuthenticator) SignUp(ctx context.Context, identifier, secret string) (string, error) {
	id := normalize(identifier)
	if id == "" || secret == "" {
		return "", &Error{Op: OpSignUp, Identifier: identifier, Err: ErrEmptyCredentials}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.read()
	if err != nil {
		return "", &Error{Op: OpSignUp, Identifier: id, Err: err}
	}
	if _, ok := f.Accounts[id]; ok {
		return "", &Error{Op: OpSignUp, Identifier: id, Err: ErrIdentifierTaken}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), a.cost)
	if err != nil {
		return "", &Error{Op: OpSignUp, Identifier: id, Err: fmt.Errorf("hash secret: %w", err)}
	}
	acc := account{UserID: uuid.NewString(), Hash: string(hash), CreatedAt: time.Now().UTC()}
	f.Accounts[id] = acc
	f.Current = acc.UserID
	if err := a.write(f); err != nil {
		return "", &Error{Op: OpSignUp, Identifier: id, Err: err}
	}

	a.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, acc.UserID,
		log.FieldOperation, log.OpSignUp)
	return acc.UserID, nil
}

// SignIn checks secret against the stored hash and returns the user id.
// Unknown identifiers and wrong secrets fail the same way.
func (a *LocalAuthenticator) SignIn(ctx context.Context, identifier, secret string) (string, error) {
	id := normalize(identifier)
	if id == "" || secret == "" {
		return "", &Error{Op: OpSignIn, Identifier: identifier, Err: ErrEmptyCredentials}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.read()
	if err != nil {
		return "", &Error{Op: OpSignIn, Identifier: id, Err: err}
	}
	acc, ok := f.Accounts[id]
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.Hash), []byte(secret)) != nil {
		a.logger.WarnContext(ctx, "Sign in rejected",
			log.FieldOperation, log.OpSignIn)
		return "", &Error{Op: OpSignIn, Identifier: id, Err: ErrInvalidCredentials}
	}
	f.Current = acc.UserID
	if err := a.write(f); err != nil {
		return "", &Error{Op: OpSignIn, Identifier: id, Err: err}
	}

	a.logger.InfoContext(ctx, "Signed in",
		log.FieldUserID, acc.UserID,
		log.FieldOperation, log.OpSignIn)
	return acc.UserID, nil
}

// SignOut forgets the current session.
func (a *LocalAuthenticator) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.read()
	if err != nil {
		return &Error{Op: OpSignOut, Err: err}
	}
	if f.Current == "" {
		return &Error{Op: OpSignOut, Err: ErrNotSignedIn}
	}
	user := f.Current
	f.Current = ""
	if err := a.write(f); err != nil {
		return &Error{Op: OpSignOut, Err: err}
	}
	a.logger.InfoContext(ctx, "Signed out",
		log.FieldUserID, user,
		log.FieldOperation, log.OpSignOut)
	return nil
}

// CurrentUser returns the signed-in user id, if any.
func (a *LocalAuthenticator) CurrentUser() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.read()
	if err != nil || f.Current == "" {
		return "", false
	}
	return f.Current, true
}

// UserIDs lists every registered user id in a stable order.
func (a *LocalAuthenticator) UserIDs() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := a.read()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.Accounts))
	for _, acc := range f.Accounts {
		ids = append(ids, acc.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *LocalAuthenticator) read() (*credentialsFile, error) {
	f := &credentialsFile{Accounts: map[string]account{}}
	data, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", a.path, err)
	}
	if f.Accounts == nil {
		f.Accounts = map[string]account{}
	}
	return f, nil
}

func (a *LocalAuthenticator) write(f *credentialsFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
