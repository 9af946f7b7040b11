// Package memory provides a simple in-memory implementation used for development and tests.
// A Tx holds the write lock from BeginTx until Commit or Rollback and stages its writes,
// so concurrent mutations are serialized and a rolled back Tx leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu           sync.RWMutex
	users        map[int64]ledger.User
	accounts     map[int64]ledger.Account
	transactions map[int64]ledger.Transaction
	lastUser     int64
	lastAccount  int64
	lastTxn      int64
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		users:        make(map[int64]ledger.User),
		accounts:     make(map[int64]ledger.Account),
		transactions: make(map[int64]ledger.Transaction),
	}
}

// Seed helpers for local dev/tests. Zero ids are assigned from the sequence.
func (s *Store) SeedUser(u ledger.User) ledger.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = nextID(&s.lastUser, u.ID)
	s.users[u.ID] = u
	return u
}

func (s *Store) SeedAccount(a ledger.Account) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = nextID(&s.lastAccount, a.ID)
	s.accounts[a.ID] = a
	return a
}

func (s *Store) SeedTransaction(t ledger.Transaction) ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = nextID(&s.lastTxn, t.ID)
	s.transactions[t.ID] = t
	return t
}

func nextID(last *int64, want int64) int64 {
	if want == 0 {
		*last++
		return *last
	}
	if want > *last {
		*last = want
	}
	return want
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// --- reads ---

func (s *Store) UserByID(_ context.Context, id int64) (ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return ledger.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByLogin(_ context.Context, login string) (ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return ledger.User{}, errs.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(values(s.users), func(u ledger.User) int64 { return u.ID }), nil
}

func (s *Store) AccountByID(_ context.Context, id int64) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAccounts(context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(values(s.accounts), accountID), nil
}

// AccountsByUserID returns accounts for a user.
func (s *Store) AccountsByUserID(_ context.Context, userID int64) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0)
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return sortedByID(out, accountID), nil
}

func (s *Store) TransactionByID(_ context.Context, id int64) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(values(s.transactions), txnID), nil
}

// TransactionsByUserID returns all transactions for a user.
func (s *Store) TransactionsByUserID(_ context.Context, userID int64) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return sortedByID(out, txnID), nil
}

// --- transactions ---

// BeginTx acquires the write lock; it is released by Commit or Rollback.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &Tx{
		s:            s,
		users:        map[int64]*ledger.User{},
		accounts:     map[int64]*ledger.Account{},
		transactions: map[int64]*ledger.Transaction{},
		lastUser:     s.lastUser,
		lastAccount:  s.lastAccount,
		lastTxn:      s.lastTxn,
	}, nil
}

// Tx stages writes over the locked store. A nil staged value marks a deletion.
type Tx struct {
	s            *Store
	users        map[int64]*ledger.User
	accounts     map[int64]*ledger.Account
	transactions map[int64]*ledger.Transaction
	lastUser     int64
	lastAccount  int64
	lastTxn      int64
	done         bool
}

var errTxDone = errors.New("memory: transaction already finished")

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return errTxDone
	}
	apply(t.users, t.s.users)
	apply(t.accounts, t.s.accounts)
	apply(t.transactions, t.s.transactions)
	t.s.lastUser, t.s.lastAccount, t.s.lastTxn = t.lastUser, t.lastAccount, t.lastTxn
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *Tx) UserByID(_ context.Context, id int64) (ledger.User, error) {
	u, ok := lookup(t.users, t.s.users, id)
	if !ok {
		return ledger.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (t *Tx) UserByLogin(_ context.Context, login string) (ledger.User, error) {
	for _, u := range merged(t.users, t.s.users) {
		if u.Login == login {
			return u, nil
		}
	}
	return ledger.User{}, errs.ErrNotFound
}

func (t *Tx) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	if _, err := t.UserByLogin(ctx, u.Login); err == nil {
		return ledger.User{}, errs.ErrDuplicateLogin
	}
	t.lastUser++
	u.ID = t.lastUser
	t.users[u.ID] = &u
	return u, nil
}

func (t *Tx) UpdateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	if _, ok := lookup(t.users, t.s.users, u.ID); !ok {
		return ledger.User{}, errs.ErrNotFound
	}
	if other, err := t.UserByLogin(ctx, u.Login); err == nil && other.ID != u.ID {
		return ledger.User{}, errs.ErrDuplicateLogin
	}
	t.users[u.ID] = &u
	return u, nil
}

func (t *Tx) DeleteUser(_ context.Context, id int64) error {
	if _, ok := lookup(t.users, t.s.users, id); !ok {
		return errs.ErrNotFound
	}
	for _, tr := range merged(t.transactions, t.s.transactions) {
		if tr.UserID == id {
			t.transactions[tr.ID] = nil
		}
	}
	for _, a := range merged(t.accounts, t.s.accounts) {
		if a.UserID == id {
			t.deleteAccountLocked(a.ID)
		}
	}
	t.users[id] = nil
	return nil
}

func (t *Tx) AccountByID(_ context.Context, id int64) (ledger.Account, error) {
	a, ok := lookup(t.accounts, t.s.accounts, id)
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (t *Tx) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	if _, ok := lookup(t.users, t.s.users, a.UserID); !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	t.lastAccount++
	a.ID = t.lastAccount
	t.accounts[a.ID] = &a
	return a, nil
}

// UpdateAccount persists changes to an account.
func (t *Tx) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	if _, ok := lookup(t.accounts, t.s.accounts, a.ID); !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	t.accounts[a.ID] = &a
	return a, nil
}

func (t *Tx) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := lookup(t.accounts, t.s.accounts, id); !ok {
		return errs.ErrNotFound
	}
	t.deleteAccountLocked(id)
	return nil
}

func (t *Tx) deleteAccountLocked(id int64) {
	for _, tr := range merged(t.transactions, t.s.transactions) {
		if tr.AccountID == id {
			t.transactions[tr.ID] = nil
		}
	}
	t.accounts[id] = nil
}

func (t *Tx) TransactionByID(_ context.Context, id int64) (ledger.Transaction, error) {
	tr, ok := lookup(t.transactions, t.s.transactions, id)
	if !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return tr, nil
}

func (t *Tx) CreateTransaction(_ context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	if _, ok := lookup(t.accounts, t.s.accounts, tr.AccountID); !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	t.lastTxn++
	tr.ID = t.lastTxn
	tr.Date = ledger.DateOf(tr.Date)
	t.transactions[tr.ID] = &tr
	return tr, nil
}

func (t *Tx) UpdateTransaction(_ context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	if _, ok := lookup(t.transactions, t.s.transactions, tr.ID); !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	tr.Date = ledger.DateOf(tr.Date)
	t.transactions[tr.ID] = &tr
	return tr, nil
}

func (t *Tx) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := lookup(t.transactions, t.s.transactions, id); !ok {
		return errs.ErrNotFound
	}
	t.transactions[id] = nil
	return nil
}

// --- staging helpers ---

func lookup[T any](staged map[int64]*T, base map[int64]T, id int64) (T, bool) {
	if p, ok := staged[id]; ok {
		if p == nil {
			var zero T
			return zero, false
		}
		return *p, true
	}
	v, ok := base[id]
	return v, ok
}

func merged[T any](staged map[int64]*T, base map[int64]T) []T {
	out := make([]T, 0, len(base)+len(staged))
	for id, v := range base {
		if _, ok := staged[id]; ok {
			continue
		}
		out = append(out, v)
	}
	for _, p := range staged {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func apply[T any](staged map[int64]*T, base map[int64]T) {
	for id, p := range staged {
		if p == nil {
			delete(base, id)
			continue
		}
		base[id] = *p
	}
}

func values[T any](m map[int64]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func sortedByID[T any](list []T, id func(T) int64) []T {
	sort.Slice(list, func(i, j int) bool { return id(list[i]) < id(list[j]) })
	return list
}

func accountID(a ledger.Account) int64 { return a.ID }
func txnID(t ledger.Transaction) int64 { return t.ID }
