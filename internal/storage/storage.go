// Package storage declares the persistence contract shared by the memory, SQLite and
// Postgres backends. Reads go straight to the store; every mutation runs inside a Tx
// so that balance checks and the writes they guard commit or roll back together.
package storage

import (
	"context"

	"github.com/tinoosan/finman/internal/ledger"
)

// Reader abstracts read operations. Lookups by id return errs.ErrNotFound when absent.
type Reader interface {
	UserByID(ctx context.Context, id int64) (ledger.User, error)
	UserByLogin(ctx context.Context, login string) (ledger.User, error)
	ListUsers(ctx context.Context) ([]ledger.User, error)

	AccountByID(ctx context.Context, id int64) (ledger.Account, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	AccountsByUserID(ctx context.Context, userID int64) ([]ledger.Account, error)

	TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error)
	ListTransactions(ctx context.Context) ([]ledger.Transaction, error)
	TransactionsByUserID(ctx context.Context, userID int64) ([]ledger.Transaction, error)
}

// Tx is a unit of work. Reads inside a Tx lock the rows they return until Commit or
// Rollback where the backend supports it; the memory and SQLite backends serialize
// whole transactions instead.
type Tx interface {
	UserByID(ctx context.Context, id int64) (ledger.User, error)
	UserByLogin(ctx context.Context, login string) (ledger.User, error)
	CreateUser(ctx context.Context, u ledger.User) (ledger.User, error)
	UpdateUser(ctx context.Context, u ledger.User) (ledger.User, error)
	// DeleteUser removes the user together with its accounts and transactions.
	DeleteUser(ctx context.Context, id int64) error

	AccountByID(ctx context.Context, id int64) (ledger.Account, error)
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	// DeleteAccount removes the account together with its transactions.
	DeleteAccount(ctx context.Context, id int64) error

	TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error)
	CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner starts a Tx.
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Store is the full contract a backend satisfies.
type Store interface {
	Reader
	TxBeginner
	Ready(ctx context.Context) error
	Close()
}

// InTx runs fn inside a transaction, committing when fn returns nil and rolling back
// otherwise.
func InTx(ctx context.Context, b TxBeginner, fn func(tx Tx) error) error {
	tx, err := b.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
