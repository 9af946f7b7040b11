// Package transaction is the balance-mutation engine. Every create, update and delete
// checks ownership, resolves the category against the amount's sign, computes the
// prospective account balance and applies the account and transaction writes in one
// storage transaction. A balance may never drop below zero.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/dictionary"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// Input describes a transaction to create or the new state of one being updated.
// A zero UserID means the caller on create and the current owner on update.
// A zero Date means today on create and "unchanged" on update.
type Input struct {
	UserID    int64
	AccountID int64
	Category  ledger.Category
	Amount    money.Amount
	Date      time.Time
}

// View is a transaction together with its owner and account.
type View struct {
	ledger.Transaction
	Owner   ledger.User
	Account ledger.Account
}

// Service exposes the balance-mutation engine and transaction listings.
type Service interface {
	Create(ctx context.Context, c authz.Caller, in Input) (View, error)
	ListAll(ctx context.Context, c authz.Caller) ([]View, error)
	ListByUser(ctx context.Context, c authz.Caller, userID int64) ([]View, error)
	Update(ctx context.Context, c authz.Caller, id int64, in Input) (View, error)
	Delete(ctx context.Context, c authz.Caller, id int64) (View, error)
}

type service struct {
	repo    storage.Reader
	txs     storage.TxBeginner
	protect authz.Protector
	now     func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithNow overrides the clock used for default transaction dates.
func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(repo storage.Reader, txs storage.TxBeginner, protect authz.Protector, opts ...Option) Service {
	s := &service{repo: repo, txs: txs, protect: protect, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	errNoSuchAccount = fmt.Errorf("the user does not have such an account: %w", errs.ErrConflict)
	errOverdraft     = fmt.Errorf("the amount of the expense exceeds the balance amount, the balance cannot be negative: %w", errs.ErrInsufficientFunds)
)

// Create records a transaction and moves the account balance by its amount.
func (s *service) Create(ctx context.Context, c authz.Caller, in Input) (View, error) {
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	in.UserID = authz.Self(c, in.UserID)
	var out View
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		owner, acc, category, err := s.prepare(ctx, tx, c, in)
		if err != nil {
			return err
		}
		acc.Amount, err = apply(acc.Amount, in.Amount, nil)
		if err != nil {
			return err
		}
		if acc, err = tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		created, err := tx.CreateTransaction(ctx, ledger.Transaction{
			UserID:    owner.ID,
			AccountID: acc.ID,
			Category:  category,
			Amount:    in.Amount,
			Date:      ledger.DateOf(in.Date),
		})
		if err != nil {
			return err
		}
		out = View{Transaction: created, Owner: owner, Account: acc}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

// Update replaces a transaction. When the account changes, the old account gives back
// the old amount and the new account takes the new amount; both must stay non-negative.
func (s *service) Update(ctx context.Context, c authz.Caller, id int64, in Input) (View, error) {
	var out View
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		existing, err := s.existing(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if in.UserID == 0 {
			in.UserID = existing.UserID
		}
		owner, acc, category, err := s.prepare(ctx, tx, c, in)
		if err != nil {
			return err
		}
		if acc.ID == existing.AccountID {
			acc.Amount, err = apply(acc.Amount, in.Amount, &existing.Amount)
			if err != nil {
				return err
			}
		} else {
			prev, err := tx.AccountByID(ctx, existing.AccountID)
			if err != nil {
				return err
			}
			zero, err := ledger.Zero(existing.Amount.Curr().Code())
			if err != nil {
				return err
			}
			if prev.Amount, err = apply(prev.Amount, zero, &existing.Amount); err != nil {
				return err
			}
			if acc.Amount, err = apply(acc.Amount, in.Amount, nil); err != nil {
				return err
			}
			if _, err := tx.UpdateAccount(ctx, prev); err != nil {
				return err
			}
		}
		if acc, err = tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		next := existing
		next.UserID = owner.ID
		next.AccountID = acc.ID
		next.Category = category
		next.Amount = in.Amount
		if !in.Date.IsZero() {
			next.Date = ledger.DateOf(in.Date)
		}
		updated, err := tx.UpdateTransaction(ctx, next)
		if err != nil {
			return err
		}
		out = View{Transaction: updated, Owner: owner, Account: acc}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

// Delete removes a transaction and takes its amount back out of the account.
func (s *service) Delete(ctx context.Context, c authz.Caller, id int64) (View, error) {
	var out View
	err := storage.InTx(ctx, s.txs, func(tx storage.Tx) error {
		existing, err := s.existing(ctx, tx, c, id)
		if err != nil {
			return err
		}
		owner, err := tx.UserByID(ctx, existing.UserID)
		if err != nil {
			return err
		}
		acc, err := tx.AccountByID(ctx, existing.AccountID)
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("account not found: %w", errs.ErrNotFound)
		}
		if err != nil {
			return err
		}
		zero, err := ledger.Zero(existing.Amount.Curr().Code())
		if err != nil {
			return err
		}
		if acc.Amount, err = apply(acc.Amount, zero, &existing.Amount); err != nil {
			return err
		}
		if acc, err = tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, existing.ID); err != nil {
			return err
		}
		out = View{Transaction: existing, Owner: owner, Account: acc}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return out, nil
}

// ListAll returns every transaction; admin only.
func (s *service) ListAll(ctx context.Context, c authz.Caller) ([]View, error) {
	if err := authz.RequireAdmin(c); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	accs, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return views(txns, users, accs), nil
}

// ListByUser returns the transactions of userID (0 means the caller).
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
	txns, err := s.repo.TransactionsByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	return views(txns, []ledger.User{owner}, accs), nil
}

// prepare validates the target user, account and category of in.
func (s *service) prepare(ctx context.Context, tx storage.Tx, c authz.Caller, in Input) (ledger.User, ledger.Account, ledger.Category, error) {
	owner, err := tx.UserByID(ctx, in.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, ledger.Account{}, "", fmt.Errorf("user not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.User{}, ledger.Account{}, "", err
	}
	if err := s.protect.Check(owner); err != nil {
		return ledger.User{}, ledger.Account{}, "", err
	}
	if err := authz.Authorize(c, owner.ID); err != nil {
		return ledger.User{}, ledger.Account{}, "", err
	}
	acc, err := tx.AccountByID(ctx, in.AccountID)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.User{}, ledger.Account{}, "", fmt.Errorf("account not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.User{}, ledger.Account{}, "", err
	}
	if acc.UserID != owner.ID {
		return ledger.User{}, ledger.Account{}, "", errNoSuchAccount
	}
	category, err := dictionary.Resolve(in.Category, ledger.MinorUnits(in.Amount))
	if err != nil {
		return ledger.User{}, ledger.Account{}, "", err
	}
	return owner, acc, category, nil
}

// existing loads transaction id and checks the caller may touch it.
func (s *service) existing(ctx context.Context, tx storage.Tx, c authz.Caller, id int64) (ledger.Transaction, error) {
	t, err := tx.TransactionByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Transaction{}, fmt.Errorf("transaction not found: %w", errs.ErrNotFound)
	}
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := authz.Authorize(c, t.UserID); err != nil {
		return ledger.Transaction{}, err
	}
	return t, nil
}

// apply returns balance - prev + amount (prev may be nil) and rejects negative results.
func apply(balance, amount money.Amount, prev *money.Amount) (money.Amount, error) {
	next := balance
	var err error
	if prev != nil {
		if next, err = next.Sub(*prev); err != nil {
			return money.Amount{}, fmt.Errorf("%v: %w", err, errs.ErrInvalid)
		}
	}
	if next, err = next.Add(amount); err != nil {
		return money.Amount{}, fmt.Errorf("%v: %w", err, errs.ErrInvalid)
	}
	if ledger.MinorUnits(next) < 0 {
		return money.Amount{}, errOverdraft
	}
	return next, nil
}

func views(txns []ledger.Transaction, users []ledger.User, accs []ledger.Account) []View {
	byUser := make(map[int64]ledger.User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}
	byAcc := make(map[int64]ledger.Account, len(accs))
	for _, a := range accs {
		byAcc[a.ID] = a
	}
	out := make([]View, 0, len(txns))
	for _, t := range txns {
		out = append(out, View{Transaction: t, Owner: byUser[t.UserID], Account: byAcc[t.AccountID]})
	}
	return out
}
