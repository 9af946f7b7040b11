// Package storagetest holds behavioural tests every storage.Store implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// Currency is the bookkeeping currency the conformance tests use.
const Currency = "USD"

// Run exercises s. The store must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("accounts and transactions", func(t *testing.T) { testAccountsAndTransactions(t, s) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, s) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, s) })
}

func minor(t *testing.T, units int64) money.Amount {
	t.Helper()
	a, err := ledger.AmountFromMinor(Currency, units)
	require.NoError(t, err)
	return a
}

func mustCreateUser(t *testing.T, s storage.Store, login string) ledger.User {
	t.Helper()
	var u ledger.User
	err := storage.InTx(context.Background(), s, func(tx storage.Tx) error {
		var err error
		u, err = tx.CreateUser(context.Background(), ledger.User{Login: login, PasswordHash: "hash"})
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	return u
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")

	got, err := s.UserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	err = storage.InTx(ctx, s, func(tx storage.Tx) error {
		_, err := tx.CreateUser(ctx, ledger.User{Login: "alice", PasswordHash: "x"})
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrDuplicateLogin), "got %v", err)

	bob := mustCreateUser(t, s, "bob")
	err = storage.InTx(ctx, s, func(tx storage.Tx) error {
		bob.Login = "alice"
		_, err := tx.UpdateUser(ctx, bob)
		return err
	})
	assert.True(t, errors.Is(err, errs.ErrDuplicateLogin), "got %v", err)

	err = storage.InTx(ctx, s, func(tx storage.Tx) error {
		u, err := tx.UserByID(ctx, alice.ID)
		if err != nil {
			return err
		}
		u.IsAdmin = true
		_, err = tx.UpdateUser(ctx, u)
		return err
	})
	require.NoError(t, err)
	got, err = s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	_, err = s.UserByID(ctx, 999999)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(users), 2)
	for i := 1; i < len(users); i++ {
		assert.Less(t, users[i-1].ID, users[i].ID)
	}
}

func testAccountsAndTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	carol := mustCreateUser(t, s, "carol")
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	var acc ledger.Account
	var tr ledger.Transaction
	err := storage.InTx(ctx, s, func(tx storage.Tx) error {
		var err error
		acc, err = tx.CreateAccount(ctx, ledger.Account{UserID: carol.ID, Name: "Wallet", Amount: minor(t, 10000)})
		if err != nil {
			return err
		}
		tr, err = tx.CreateTransaction(ctx, ledger.Transaction{
			UserID: carol.ID, AccountID: acc.ID, Category: ledger.CategoryProducts,
			Amount: minor(t, -2550), Date: day,
		})
		if err != nil {
			return err
		}
		acc.Amount = minor(t, 7450)
		acc, err = tx.UpdateAccount(ctx, acc)
		return err
	})
	require.NoError(t, err)

	gotAcc, err := s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7450), ledger.MinorUnits(gotAcc.Amount))
	assert.Equal(t, "Wallet", gotAcc.Name)

	accs, err := s.AccountsByUserID(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, accs, 1)

	gotTr, err := s.TransactionByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryProducts, gotTr.Category)
	assert.Equal(t, int64(-2550), ledger.MinorUnits(gotTr.Amount))
	assert.True(t, day.Equal(gotTr.Date), "date %v", gotTr.Date)

	err = storage.InTx(ctx, s, func(tx storage.Tx) error {
		tr.Category = ledger.CategoryClothing
		_, err := tx.UpdateTransaction(ctx, tr)
		return err
	})
	require.NoError(t, err)
	txns, err := s.TransactionsByUserID(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.CategoryClothing, txns[0].Category)

	err = storage.InTx(ctx, s, func(tx storage.Tx) error { return tx.DeleteTransaction(ctx, tr.ID) })
	require.NoError(t, err)
	_, err = s.TransactionByID(ctx, tr.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = storage.InTx(ctx, s, func(tx storage.Tx) error { return tx.DeleteTransaction(ctx, tr.ID) })
	assert.ErrorIs(t, err, errs.ErrNotFound)

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

var errBoom = errors.New("boom")

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	dave := mustCreateUser(t, s, "dave")
	err := storage.InTx(ctx, s, func(tx storage.Tx) error {
		if _, err := tx.CreateAccount(ctx, ledger.Account{UserID: dave.ID, Name: "Temp", Amount: minor(t, 500)}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	accs, err := s.AccountsByUserID(ctx, dave.ID)
	require.NoError(t, err)
	assert.Empty(t, accs)

	// the store must be usable after a rollback
	err = storage.InTx(ctx, s, func(tx storage.Tx) error {
		_, err := tx.CreateAccount(ctx, ledger.Account{UserID: dave.ID, Name: "Kept", Amount: minor(t, 0)})
		return err
	})
	require.NoError(t, err)
}

func testCascade(t *testing.T, s storage.Store) {
	ctx := context.Background()
	erin := mustCreateUser(t, s, "erin")
	var a1, a2 ledger.Account
	var t1, t2 ledger.Transaction
	err := storage.InTx(ctx, s, func(tx storage.Tx) error {
		var err error
		if a1, err = tx.CreateAccount(ctx, ledger.Account{UserID: erin.ID, Name: "One", Amount: minor(t, 100)}); err != nil {
			return err
		}
		if a2, err = tx.CreateAccount(ctx, ledger.Account{UserID: erin.ID, Name: "Two", Amount: minor(t, 100)}); err != nil {
			return err
		}
		if t1, err = tx.CreateTransaction(ctx, ledger.Transaction{UserID: erin.ID, AccountID: a1.ID, Category: ledger.CategoryGift, Amount: minor(t, 100), Date: time.Now()}); err != nil {
			return err
		}
		t2, err = tx.CreateTransaction(ctx, ledger.Transaction{UserID: erin.ID, AccountID: a2.ID, Category: ledger.CategoryGift, Amount: minor(t, 100), Date: time.Now()})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, storage.InTx(ctx, s, func(tx storage.Tx) error { return tx.DeleteAccount(ctx, a1.ID) }))
	_, err = s.TransactionByID(ctx, t1.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.TransactionByID(ctx, t2.ID)
	assert.NoError(t, err)

	require.NoError(t, storage.InTx(ctx, s, func(tx storage.Tx) error { return tx.DeleteUser(ctx, erin.ID) }))
	_, err = s.AccountByID(ctx, a2.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.TransactionByID(ctx, t2.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.UserByID(ctx, erin.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
