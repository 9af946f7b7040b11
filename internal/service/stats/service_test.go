package stats

import (
	"context"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage/memory"
)

var now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func usd(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := ledger.AmountFromMinor("USD", minor)
	require.NoError(t, err)
	return a
}

func day(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

func setup(t *testing.T) (Service, *memory.Store, ledger.User, ledger.User) {
	t.Helper()
	st := memory.New()
	alice := st.SeedUser(ledger.User{Login: "alice"})
	bob := st.SeedUser(ledger.User{Login: "bob"})
	return New(st, "USD", WithNow(func() time.Time { return now })), st, alice, bob
}

func TestUserBalances(t *testing.T) {
	svc, st, alice, bob := setup(t)
	ctx := context.Background()
	acc := st.SeedAccount(ledger.Account{UserID: alice.ID, Name: "Main", Amount: usd(t, 7000)})
	st.SeedAccount(ledger.Account{UserID: alice.ID, Name: "Spare", Amount: usd(t, 3000)})
	st.SeedTransaction(ledger.Transaction{UserID: alice.ID, AccountID: acc.ID, Category: ledger.CategorySalary, Amount: usd(t, 12000), Date: day(time.March, 1)})
	st.SeedTransaction(ledger.Transaction{UserID: alice.ID, AccountID: acc.ID, Category: ledger.CategoryProducts, Amount: usd(t, -2000), Date: day(time.March, 10)})

	b, err := svc.UserBalances(ctx, authz.FromUser(alice), 0)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, b.UserID)
	assert.Equal(t, "alice", b.UserName)
	assert.Equal(t, 2, b.AccountCount)
	assert.Equal(t, int64(10000), ledger.MinorUnits(b.TotalAmount))
	assert.Equal(t, 2, b.TransactionCount)
	require.NotNil(t, b.FirstDate)
	assert.Equal(t, day(time.March, 1), *b.FirstDate)
	assert.Equal(t, day(time.March, 10), *b.LastDate)
	// 100.00 over 10 days
	assert.InDelta(t, 10.0, b.AvgPerDay, 1e-9)
	assert.InDelta(t, 100.0/(10.0/DaysPerMonth), b.AvgPerMonth, 1e-9)

	_, err = svc.UserBalances(ctx, authz.FromUser(bob), alice.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = svc.UserBalances(ctx, authz.FromUser(alice), 99)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserBalances_NoTransactions(t *testing.T) {
	svc, _, alice, _ := setup(t)
	b, err := svc.UserBalances(context.Background(), authz.FromUser(alice), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, b.AccountCount)
	assert.Zero(t, b.AvgPerDay)
	assert.Zero(t, b.AvgPerMonth)
	assert.Nil(t, b.FirstDate)
}

func TestUserBalances_SingleDay(t *testing.T) {
	svc, st, alice, _ := setup(t)
	acc := st.SeedAccount(ledger.Account{UserID: alice.ID, Name: "Main", Amount: usd(t, 0)})
	st.SeedTransaction(ledger.Transaction{UserID: alice.ID, AccountID: acc.ID, Category: ledger.CategoryGift, Amount: usd(t, 3044), Date: day(time.March, 2)})
	b, err := svc.UserBalances(context.Background(), authz.FromUser(alice), 0)
	require.NoError(t, err)
	assert.InDelta(t, 30.44, b.AvgPerDay, 1e-9)
	assert.InDelta(t, 30.44*DaysPerMonth, b.AvgPerMonth, 1e-6)
}

func TestMonthlyCategorySpent(t *testing.T) {
	svc, st, alice, bob := setup(t)
	ctx := context.Background()
	acc := st.SeedAccount(ledger.Account{UserID: alice.ID, Name: "Main", Amount: usd(t, 0)})
	seed := func(c ledger.Category, minor int64, d time.Time) {
		st.SeedTransaction(ledger.Transaction{UserID: alice.ID, AccountID: acc.ID, Category: c, Amount: usd(t, minor), Date: d})
	}
	seed(ledger.CategoryProducts, -1000, day(time.March, 2))
	seed(ledger.CategoryProducts, -500, day(time.March, 14))
	seed(ledger.CategoryClothing, -3000, day(time.March, 5))
	seed(ledger.CategorySalary, 9000, day(time.March, 1))
	// after today
	seed(ledger.CategoryGift, 100, day(time.March, 20))
	seed(ledger.CategorySubscriptions, -99, day(time.February, 29))

	got, err := svc.MonthlyCategorySpent(ctx, authz.FromUser(alice), 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ledger.CategoryClothing, got[0].Category)
	assert.Equal(t, int64(-3000), ledger.MinorUnits(got[0].Amount))
	assert.Equal(t, ledger.CategoryProducts, got[1].Category)
	assert.Equal(t, int64(-1500), ledger.MinorUnits(got[1].Amount))
	assert.Equal(t, ledger.CategorySalary, got[2].Category)

	feb, err := svc.MonthlyCategorySpent(ctx, authz.FromUser(alice), 0, 2, 2024)
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, ledger.CategorySubscriptions, feb[0].Category)

	future, err := svc.MonthlyCategorySpent(ctx, authz.FromUser(alice), 0, 6, 2024)
	require.NoError(t, err)
	assert.Empty(t, future)

	_, err = svc.MonthlyCategorySpent(ctx, authz.FromUser(alice), 0, 13, 2024)
	assert.ErrorIs(t, err, errs.ErrUnprocessable)

	_, err = svc.MonthlyCategorySpent(ctx, authz.FromUser(bob), alice.ID, 0, 0)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestWindow(t *testing.T) {
	from, to := Window(now, 0, 0)
	assert.Equal(t, day(time.March, 1), from)
	assert.Equal(t, day(time.March, 15), to)

	from, to = Window(now, 2, 2024)
	assert.Equal(t, day(time.February, 1), from)
	assert.Equal(t, day(time.February, 29), to)

	from, to = Window(now, 12, 2023)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), to)
}
