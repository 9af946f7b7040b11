// Package account implements the account rules: one owner per account, a bounded
// name, a non-negative opening balance, and an immutable owner and balance once created
// (the balance only moves through transactions).
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/govalues/money"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// View is an account together with its owner.
type View struct {
	ledger.Account
	Owner ledger.User
}

// UpdateInput carries the fields of an account update. Nil fields are left unchanged.
// Only Name may differ from the stored value.
type UpdateInput struct {
	Name   *string
	Amount *money.Amount
	UserID *int64
}

type Service interface {
	ValidateCreate(a ledger.Account) (ledger.Account, error)
	Create(ctx context.Context, c authz.Caller, a ledger.Account) (View, error)
	ListAll(ctx context.Context, c authz.Caller) ([]View, error)
	ListByUser(ctx context.Context, c authz.Caller, userID int64) ([]View, error)
	Update(ctx context.Context, c authz.Caller, id int64, in UpdateInput) (View, error)
	Delete(ctx context.Context, c authz.Caller, id int64) (View, error)
}

type service struct {
	repo    storage.Reader
	txs     storage.TxBeginner
	protect authz.Protector
}

func New(repo storage.Reader, txs storage.TxBeginner, protect authz.Protector) Service {
	return &service{repo: repo, txs: txs, protect: protect}
}

// ValidateName trims name, applies the default and enforces the length bound.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.DefaultAccountName, nil
	}
	if utf8.RuneCountInString(name) > ledger.MaxAccountNameLen {
		return "", fmt.Errorf("account_name must be at most %d characters: %w", ledger.MaxAccountNameLen, errs.ErrUnprocessable)
	}
	return name, nil
}

// ValidateCreate normalizes the name and checks the opening balance.
func (s *service) ValidateCreate(a ledger.Account) (ledger.Account, error) {
	if a.UserID <= 0 {
		return ledger.Account{}, fmt.Errorf("user_id is required: %w", errs.ErrUnprocessable)
	}
	name, err := ValidateName(a.Name)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Name = name
	if ledger.MinorUnits(a.Amount) < 0 {
		return ledger.Account{}, fmt.Errorf("amount must be greater than or equal to 0: %w", errs.ErrUnprocessable)
	}
	return a, nil
}

// Create opens an account for a.UserID.
func (s *service) Create(ctx context.Context, c authz.Caller, a ledger.Account) (View, error) {
	a, err := s.ValidateCreate(a)
	if err != nil {
		return View{}, err
	}
	var out View
	err = storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		owner, err := s.owner(ctx, tx, c, a.UserID)
		if err != nil {
			return err
		}
		if err := s.protect.Check(owner); err != nil {
			return err
		}
		created, err := tx.CreateAccount(ctx, ledger.Account{UserID: owner.ID, Name: a.Name, Amount: a.Amount})
		if err != nil {
			return err
		}
		out = View{Account: created, Owner: owner}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

// ListAll returns every account; admin only.
func (s *service) ListAll(ctx context.Context, c authz.Caller) ([]View, error) {
	if err := authz.RequireAdmin(c); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]ledger.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	accs, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(accs))
	for _, a := range accs {
		out = append(out, View{Account: a, Owner: byID[a.UserID]})
	}
	return out, nil
}

// ListByUser returns the accounts of userID (0 means the caller).
func (s *service) ListByUser(ctx context.Context, c authz.Caller, userID int64) ([]View, error) {
	userID = authz.Self(c, userID)
	owner, err := s.repo.UserByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(c, owner.ID); err != nil {
		return nil, err
	}
	accs, err := s.repo.AccountsByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(accs))
	for _, a := range accs {
		out = append(out, View{Account: a, Owner: owner})
	}
	return out, nil
}

// Update renames an account. Attempts to change the owner or balance are rejected.
func (s *service) Update(ctx context.Context, c authz.Caller, id int64, in UpdateInput) (View, error) {
	var out View
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		current, owner, err := s.load(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if in.UserID != nil && *in.UserID != current.UserID {
			return fmt.Errorf("user_id cannot be changed: %w", errs.ErrImmutable)
		}
		if in.Amount != nil && ledger.MinorUnits(*in.Amount) != ledger.MinorUnits(current.Amount) {
			return fmt.Errorf("amount changes only through transactions: %w", errs.ErrImmutable)
		}
		if in.Name != nil {
			name, err := ValidateName(*in.Name)
			if err != nil {
				return err
			}
			current.Name = name
		}
		updated, err := tx.UpdateAccount(ctx, current)
		if err != nil {
			return err
		}
		out = View{Account: updated, Owner: owner}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

// Delete removes an account with its transactions and returns it.
func (s *service) Delete(ctx context.Context, c authz.Caller, id int64) (View, error) {
	var out View
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		current, owner, err := s.load(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteAccount(ctx, current.ID); err != nil {
			return err
		}
		out = View{Account: current, Owner: owner}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

func (s *service) owner(ctx context.Context, tx storage.Tx, c authz.Caller, userID int64) (ledger.User, error) {
	u, err := tx.UserByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, fmt.Errorf("user not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.User{}, err
	}
	if err := authz.Authorize(c, u.ID); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (s *service) load(ctx context.Context, tx storage.Tx, c authz.Caller, id int64) (ledger.Account, ledger.User, error) {
	a, err := tx.AccountByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, ledger.User{}, fmt.Errorf("account not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.Account{}, ledger.User{}, err
	}
	owner, err := s.owner(ctx, tx, c, a.UserID)
	if err != nil {
		return ledger.Account{}, ledger.User{}, err
	}
	return a, owner, nil
}
