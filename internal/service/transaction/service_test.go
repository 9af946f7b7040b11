package transaction

import (
	"context"
	"math/rand"
	"sort"
	"sync"
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

var today = time.Date(2024, time.May, 20, 15, 4, 5, 0, time.UTC)

func usd(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := ledger.AmountFromMinor("USD", minor)
	require.NoError(t, err)
	return a
}

type fixture struct {
	svc               Service
	store             *memory.Store
	admin, alice, bob ledger.User
	wallet            ledger.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.New()
	f := fixture{store: st}
	f.svc = New(st, st, authz.Protector{AdminLogin: "admin"}, WithNow(func() time.Time { return today }))
	f.admin = st.SeedUser(ledger.User{Login: "admin", IsAdmin: true})
	f.alice = st.SeedUser(ledger.User{Login: "alice"})
	f.bob = st.SeedUser(ledger.User{Login: "bob"})
	f.wallet = st.SeedAccount(ledger.Account{UserID: f.alice.ID, Name: "Wallet", Amount: usd(t, 10000)})
	return f
}

func (f fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	a, err := f.store.AccountByID(context.Background(), id)
	require.NoError(t, err)
	return ledger.MinorUnits(a.Amount)
}

func TestAliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)

	_, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: usd(t, -15000)})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.Equal(t, int64(10000), f.balance(t, f.wallet.ID))

	v, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: usd(t, -5000)})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), f.balance(t, f.wallet.ID))
	assert.Equal(t, int64(5000), ledger.MinorUnits(v.Account.Amount))
	assert.Equal(t, ledger.DateOf(today), v.Date)

	_, err = f.svc.Delete(ctx, alice, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), f.balance(t, f.wallet.ID))
}

func TestCreate_Category(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)

	v, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryAuto, Amount: usd(t, -100)})
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryOtherExpenses, v.Category)

	v, err = f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryAuto, Amount: usd(t, 0)})
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryOtherIncome, v.Category)

	_, err = f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategorySalary, Amount: usd(t, -100)})
	assert.ErrorIs(t, err, errs.ErrInvalidCategory)

	_, err = f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: "salary", Amount: usd(t, 100)})
	assert.ErrorIs(t, err, errs.ErrInvalidCategory)
	assert.Equal(t, int64(9900), f.balance(t, f.wallet.ID))
}

func TestCreate_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bobAcc := f.store.SeedAccount(ledger.Account{UserID: f.bob.ID, Name: "Bob", Amount: usd(t, 0)})

	_, err := f.svc.Create(ctx, authz.FromUser(f.bob), Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Create(ctx, authz.FromUser(f.alice), Input{UserID: f.alice.ID, AccountID: bobAcc.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = f.svc.Create(ctx, authz.FromUser(f.alice), Input{UserID: f.alice.ID, AccountID: 999, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Create(ctx, authz.FromUser(f.admin), Input{UserID: f.admin.ID, AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	assert.ErrorIs(t, err, errs.ErrProtectedAdmin)

	v, err := f.svc.Create(ctx, authz.FromUser(f.admin), Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, v.UserID)
}

func TestUpdate_SameAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	v, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: usd(t, -4000)})
	require.NoError(t, err)

	// 6000 - (-4000) + (-12000) < 0
	_, err = f.svc.Update(ctx, alice, v.ID, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: usd(t, -12000)})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.Equal(t, int64(6000), f.balance(t, f.wallet.ID))

	up, err := f.svc.Update(ctx, alice, v.ID, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryBonus, Amount: usd(t, 2500)})
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryBonus, up.Category)
	assert.Equal(t, v.Date, up.Date)
	assert.Equal(t, int64(12500), f.balance(t, f.wallet.ID))
}

func TestUpdate_MovesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	savings := f.store.SeedAccount(ledger.Account{UserID: f.alice.ID, Name: "Savings", Amount: usd(t, 300)})

	v, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategorySalary, Amount: usd(t, 2000)})
	require.NoError(t, err)
	require.Equal(t, int64(12000), f.balance(t, f.wallet.ID))

	// the expense does not fit into savings
	_, err = f.svc.Update(ctx, alice, v.ID, Input{UserID: f.alice.ID, AccountID: savings.ID, Category: ledger.CategoryProducts, Amount: usd(t, -500)})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.Equal(t, int64(12000), f.balance(t, f.wallet.ID))
	assert.Equal(t, int64(300), f.balance(t, savings.ID))

	up, err := f.svc.Update(ctx, alice, v.ID, Input{UserID: f.alice.ID, AccountID: savings.ID, Category: ledger.CategoryProducts, Amount: usd(t, -100)})
	require.NoError(t, err)
	assert.Equal(t, savings.ID, up.AccountID)
	assert.Equal(t, int64(10000), f.balance(t, f.wallet.ID))
	assert.Equal(t, int64(200), f.balance(t, savings.ID))
}

func TestUpdate_MoveRejectedWhenOldAccountWouldGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	savings := f.store.SeedAccount(ledger.Account{UserID: f.alice.ID, Name: "Savings", Amount: usd(t, 0)})

	v, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: savings.ID, Category: ledger.CategorySalary, Amount: usd(t, 700)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: savings.ID, Category: ledger.CategoryProducts, Amount: usd(t, -600)})
	require.NoError(t, err)

	// removing +700 from savings would leave -600
	_, err = f.svc.Update(ctx, alice, v.ID, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategorySalary, Amount: usd(t, 700)})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.Equal(t, int64(100), f.balance(t, savings.ID))
	assert.Equal(t, int64(10000), f.balance(t, f.wallet.ID))
}

func TestZeroUserIDDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, authz.FromUser(f.alice), Input{AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 100)})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, v.UserID)

	up, err := f.svc.Update(ctx, authz.FromUser(f.admin), v.ID, Input{AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 300)})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, up.UserID)
	assert.Equal(t, "alice", up.Owner.Login)
	assert.Equal(t, int64(10300), f.balance(t, f.wallet.ID))
}

func TestUpdate_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, authz.FromUser(f.alice), Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	require.NoError(t, err)
	bobAcc := f.store.SeedAccount(ledger.Account{UserID: f.bob.ID, Name: "Bob", Amount: usd(t, 0)})

	// bob cannot claim alice's transaction for himself
	_, err = f.svc.Update(ctx, authz.FromUser(f.bob), v.ID, Input{UserID: f.bob.ID, AccountID: bobAcc.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Delete(ctx, authz.FromUser(f.bob), v.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Delete(ctx, authz.FromUser(f.alice), 12345)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete_RejectsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	income, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategorySalary, Amount: usd(t, 5000)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: usd(t, -14000)})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, alice, income.ID)
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.Equal(t, int64(1000), f.balance(t, f.wallet.ID))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, authz.FromUser(f.alice), Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryGift, Amount: usd(t, 1)})
	require.NoError(t, err)

	all, err := f.svc.ListAll(ctx, authz.FromUser(f.admin))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Owner.Login)
	assert.Equal(t, "Wallet", all[0].Account.Name)

	_, err = f.svc.ListAll(ctx, authz.FromUser(f.alice))
	assert.ErrorIs(t, err, errs.ErrForbidden)

	own, err := f.svc.ListByUser(ctx, authz.FromUser(f.alice), 0)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = f.svc.ListByUser(ctx, authz.FromUser(f.bob), f.alice.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestRandomSequenceKeepsBalancesConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	savings := f.store.SeedAccount(ledger.Account{UserID: f.alice.ID, Name: "Savings", Amount: usd(t, 500)})
	opening := map[int64]int64{f.wallet.ID: 10000, savings.ID: 500}
	accounts := []int64{f.wallet.ID, savings.ID}

	rng := rand.New(rand.NewSource(42))
	live := map[int64]bool{}
	ids := func() []int64 {
		out := make([]int64, 0, len(live))
		for id := range live {
			out = append(out, id)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	input := func() Input {
		return Input{
			UserID:    f.alice.ID,
			AccountID: accounts[rng.Intn(len(accounts))],
			Category:  ledger.CategoryAuto,
			Amount:    usd(t, rng.Int63n(6001)-3000),
		}
	}

	for i := 0; i < 300; i++ {
		var err error
		existing := ids()
		switch op := rng.Intn(3); {
		case op == 0 || len(existing) == 0:
			var v View
			v, err = f.svc.Create(ctx, alice, input())
			if err == nil {
				live[v.ID] = true
			}
		case op == 1:
			_, err = f.svc.Update(ctx, alice, existing[rng.Intn(len(existing))], input())
		default:
			id := existing[rng.Intn(len(existing))]
			_, err = f.svc.Delete(ctx, alice, id)
			if err == nil {
				delete(live, id)
			}
		}
		if err != nil {
			require.ErrorIs(t, err, errs.ErrInsufficientFunds, "step %d", i)
		}
	}

	txns, err := f.store.TransactionsByUserID(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, txns, len(live))
	want := map[int64]int64{}
	for id, amt := range opening {
		want[id] = amt
	}
	for _, tr := range txns {
		assert.True(t, live[tr.ID])
		want[tr.AccountID] += ledger.MinorUnits(tr.Amount)
	}
	for _, id := range accounts {
		got := f.balance(t, id)
		assert.Equal(t, want[id], got, "account %d", id)
		assert.GreaterOrEqual(t, got, int64(0))
	}
}

func TestConcurrentExpensesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := authz.FromUser(f.alice)
	expense := usd(t, -1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, alice, Input{UserID: f.alice.ID, AccountID: f.wallet.ID, Category: ledger.CategoryProducts, Amount: expense})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
	assert.Equal(t, int64(0), f.balance(t, f.wallet.ID))
}
