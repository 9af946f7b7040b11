// Package user implements registration, credential checks, token issuing and the
// id-addressed user operations (0 means the caller).
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinoosan/finman/internal/auth"
	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// TokenType is reported alongside issued access tokens.
const TokenType = "bearer"

// Credentials are the login/password pair accepted by Register and Update.
type Credentials struct {
	Login    string
	Password string
}

// Token is the result of IssueToken.
type Token struct {
	UserID      int64
	AccessToken string
	TokenType   string
}

type Service interface {
	Register(ctx context.Context, in Credentials) (ledger.User, error)
	Create(ctx context.Context, in Credentials, isAdmin bool) (ledger.User, error)
	EnsureAdmin(ctx context.Context, in Credentials) (ledger.User, bool, error)
	Authenticate(ctx context.Context, login, password string) (ledger.User, error)
	AuthenticateToken(ctx context.Context, token string) (ledger.User, error)
	IssueToken(u ledger.User) (Token, error)
	List(ctx context.Context, c authz.Caller) ([]ledger.User, error)
	Delete(ctx context.Context, c authz.Caller, id int64) (ledger.User, error)
	Update(ctx context.Context, c authz.Caller, id int64, in Credentials) (ledger.User, error)
}

type service struct {
	repo    storage.Reader
	txs     storage.TxBeginner
	tokens  *auth.Tokens
	protect authz.Protector
}

func New(repo storage.Reader, txs storage.TxBeginner, tokens *auth.Tokens, protect authz.Protector) Service {
	return &service{repo: repo, txs: txs, tokens: tokens, protect: protect}
}

var errBadCredentials = fmt.Errorf("incorrect login or password: %w", errs.ErrUnauthorized)

func validate(in Credentials) (Credentials, error) {
	in.Login = strings.TrimSpace(in.Login)
	if in.Login == "" {
		return in, fmt.Errorf("login is required: %w", errs.ErrUnprocessable)
	}
	return in, nil
}

// Register creates an ordinary user.
func (s *service) Register(ctx context.Context, in Credentials) (ledger.User, error) {
	return s.Create(ctx, in, false)
}

// Create inserts a user; duplicate logins yield errs.ErrDuplicateLogin.
func (s *service) Create(ctx context.Context, in Credentials, isAdmin bool) (ledger.User, error) {
	in, err := validate(in)
	if err != nil {
		return ledger.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return ledger.User{}, err
	}
	var created ledger.User
	err = storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		if _, err := tx.UserByLogin(ctx, in.Login); err == nil {
			return fmt.Errorf("user with login %s already exists: %w", in.Login, errs.ErrDuplicateLogin)
		} else if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		created, err = tx.CreateUser(ctx, ledger.User{Login: in.Login, IsAdmin: isAdmin, PasswordHash: hash})
		return err
	})
	if err != nil {
		return ledger.User{}, err
	}
	return created, nil
}

// EnsureAdmin seeds the administrator when no user with its login exists. An existing
// user is returned untouched. The bool reports whether a user was created.
func (s *service) EnsureAdmin(ctx context.Context, in Credentials) (ledger.User, bool, error) {
	existing, err := s.repo.UserByLogin(ctx, strings.TrimSpace(in.Login))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, false, err
	}
	u, err := s.Create(ctx, in, true)
	if errors.Is(err, errs.ErrDuplicateLogin) {
		// lost a race with another seeder
		u, err = s.repo.UserByLogin(ctx, strings.TrimSpace(in.Login))
		return u, false, err
	}
	if err != nil {
		return ledger.User{}, false, err
	}
	return u, true, nil
}

// Authenticate checks a login/password pair.
func (s *service) Authenticate(ctx context.Context, login, password string) (ledger.User, error) {
	u, err := s.repo.UserByLogin(ctx, login)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, errBadCredentials
	}
	if err != nil {
		return ledger.User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return ledger.User{}, errBadCredentials
	}
	return u, nil
}

// AuthenticateToken resolves a bearer token to its user.
func (s *service) AuthenticateToken(ctx context.Context, token string) (ledger.User, error) {
	login, err := s.tokens.Verify(token)
	if err != nil {
		return ledger.User{}, fmt.Errorf("could not validate credentials: %w", errs.ErrUnauthorized)
	}
	u, err := s.repo.UserByLogin(ctx, login)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, fmt.Errorf("could not validate credentials: %w", errs.ErrUnauthorized)
	}
	if err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (s *service) IssueToken(u ledger.User) (Token, error) {
	signed, err := s.tokens.Issue(u.Login)
	if err != nil {
		return Token{}, err
	}
	return Token{UserID: u.ID, AccessToken: signed, TokenType: TokenType}, nil
}

// List returns every user; admin only.
func (s *service) List(ctx context.Context, c authz.Caller) ([]ledger.User, error) {
	if err := authz.RequireAdmin(c); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// Delete removes the user with its accounts and transactions and returns it.
func (s *service) Delete(ctx context.Context, c authz.Caller, id int64) (ledger.User, error) {
	id = authz.Self(c, id)
	var deleted ledger.User
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		u, err := s.target(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, u.ID); err != nil {
			return err
		}
		deleted = u
		return nil
	})
	if err != nil {
		return ledger.User{}, err
	}
	return deleted, nil
}

// Update replaces login and password of the user.
func (s *service) Update(ctx context.Context, c authz.Caller, id int64, in Credentials) (ledger.User, error) {
	in, err := validate(in)
	if err != nil {
		return ledger.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return ledger.User{}, err
	}
	id = authz.Self(c, id)
	var updated ledger.User
	err = storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		u, err := s.target(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if other, err := tx.UserByLogin(ctx, in.Login); err == nil && other.ID != u.ID {
			return fmt.Errorf("user with login %s already exists: %w", in.Login, errs.ErrDuplicateLogin)
		} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		u.Login = in.Login
		u.PasswordHash = hash
		updated, err = tx.UpdateUser(ctx, u)
		return err
	})
	if err != nil {
		return ledger.User{}, err
	}
	return updated, nil
}

// target loads a user addressed by id and applies the protection and ownership rules.
func (s *service) target(ctx context.Context, tx storage.Tx, c authz.Caller, id int64) (ledger.User, error) {
	u, err := tx.UserByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, fmt.Errorf("user not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.User{}, err
	}
	if err := s.protect.Check(u); err != nil {
		return ledger.User{}, err
	}
	if err := authz.Authorize(c, u.ID); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}
