// Package postgres provides a pgx-backed storage implementation that satisfies
// storage.Store.
//
// Migrations that create the expected schema live under db/migrations. Reads issued
// through a Tx take row locks (select ... for update) so balance checks and the writes
// they guard cannot interleave with another request touching the same account.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/finman/db"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// Postgres error codes mapped to domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	curr string
}

// Open establishes a pgx pool using the provided connection string. Amounts are
// read back in curr.
func Open(ctx context.Context, dsn, curr string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, curr: strings.ToUpper(curr)}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(db.Migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := fs.ReadFile(db.Migrations, name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	userCols    = `id, login, is_admin, password_hash`
	accountCols = `id, user_id, name, amount_minor`
	txnCols     = `id, user_id, account_id, category, amount_minor, date`
)

// --- reads ---

func (s *Store) UserByID(ctx context.Context, id int64) (ledger.User, error) {
	return getUser(ctx, s.pool, `select `+userCols+` from users where id = $1`, id)
}

func (s *Store) UserByLogin(ctx context.Context, login string) (ledger.User, error) {
	return getUser(ctx, s.pool, `select `+userCols+` from users where login = $1`, login)
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.pool.Query(ctx, `select `+userCols+` from users order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.User, 0)
	for rows.Next() {
		var u ledger.User
		if err := rows.Scan(&u.ID, &u.Login, &u.IsAdmin, &u.PasswordHash); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AccountByID(ctx context.Context, id int64) (ledger.Account, error) {
	return s.getAccount(ctx, s.pool, `select `+accountCols+` from accounts where id = $1`, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.listAccounts(ctx, `select `+accountCols+` from accounts order by id`)
}

// AccountsByUserID returns accounts for a user.
func (s *Store) AccountsByUserID(ctx context.Context, userID int64) ([]ledger.Account, error) {
	return s.listAccounts(ctx, `select `+accountCols+` from accounts where user_id = $1 order by id`, userID)
}

func (s *Store) TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error) {
	return s.getTransaction(ctx, s.pool, `select `+txnCols+` from transactions where id = $1`, id)
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, `select `+txnCols+` from transactions order by id`)
}

// TransactionsByUserID returns all transactions for a user.
func (s *Store) TransactionsByUserID(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, `select `+txnCols+` from transactions where user_id = $1 order by id`, userID)
}

func (s *Store) listAccounts(ctx context.Context, sql string, args ...any) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) listTransactions(ctx context.Context, sql string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := s.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- transactions ---

// BeginTx opens a database transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, s: s}, nil
}

// Tx wraps a pgx.Tx.
type Tx struct {
	tx pgx.Tx
	s  *Store
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *Tx) UserByID(ctx context.Context, id int64) (ledger.User, error) {
	return getUser(ctx, t.tx, `select `+userCols+` from users where id = $1 for update`, id)
}

func (t *Tx) UserByLogin(ctx context.Context, login string) (ledger.User, error) {
	return getUser(ctx, t.tx, `select `+userCols+` from users where login = $1 for update`, login)
}

func (t *Tx) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	err := t.tx.QueryRow(ctx, `
		insert into users (login, is_admin, password_hash)
		values ($1, $2, $3)
		returning id
	`, u.Login, u.IsAdmin, u.PasswordHash).Scan(&u.ID)
	if err != nil {
		return ledger.User{}, mapErr(err)
	}
	return u, nil
}

func (t *Tx) UpdateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	ct, err := t.tx.Exec(ctx, `
		update users
		set login = $1, is_admin = $2, password_hash = $3
		where id = $4
	`, u.Login, u.IsAdmin, u.PasswordHash, u.ID)
	if err != nil {
		return ledger.User{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.User{}, errs.ErrNotFound
	}
	return u, nil
}

// DeleteUser relies on on delete cascade for accounts and transactions.
func (t *Tx) DeleteUser(ctx context.Context, id int64) error {
	return execOne(ctx, t.tx, `delete from users where id = $1`, id)
}

func (t *Tx) AccountByID(ctx context.Context, id int64) (ledger.Account, error) {
	return t.s.getAccount(ctx, t.tx, `select `+accountCols+` from accounts where id = $1 for update`, id)
}

func (t *Tx) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	err := t.tx.QueryRow(ctx, `
		insert into accounts (user_id, name, amount_minor)
		values ($1, $2, $3)
		returning id
	`, a.UserID, a.Name, ledger.MinorUnits(a.Amount)).Scan(&a.ID)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	return a, nil
}

// UpdateAccount persists the name and balance of an account.
func (t *Tx) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	ct, err := t.tx.Exec(ctx, `
		update accounts
		set name = $1, amount_minor = $2
		where id = $3
	`, a.Name, ledger.MinorUnits(a.Amount), a.ID)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// DeleteAccount relies on on delete cascade for transactions.
func (t *Tx) DeleteAccount(ctx context.Context, id int64) error {
	return execOne(ctx, t.tx, `delete from accounts where id = $1`, id)
}

func (t *Tx) TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error) {
	return t.s.getTransaction(ctx, t.tx, `select `+txnCols+` from transactions where id = $1 for update`, id)
}

func (t *Tx) CreateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	tr.Date = ledger.DateOf(tr.Date)
	err := t.tx.QueryRow(ctx, `
		insert into transactions (user_id, account_id, category, amount_minor, date)
		values ($1, $2, $3, $4, $5)
		returning id
	`, tr.UserID, tr.AccountID, string(tr.Category), ledger.MinorUnits(tr.Amount), tr.Date).Scan(&tr.ID)
	if err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	return tr, nil
}

func (t *Tx) UpdateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	tr.Date = ledger.DateOf(tr.Date)
	ct, err := t.tx.Exec(ctx, `
		update transactions
		set user_id = $1, account_id = $2, category = $3, amount_minor = $4, date = $5
		where id = $6
	`, tr.UserID, tr.AccountID, string(tr.Category), ledger.MinorUnits(tr.Amount), tr.Date, tr.ID)
	if err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return tr, nil
}

func (t *Tx) DeleteTransaction(ctx context.Context, id int64) error {
	return execOne(ctx, t.tx, `delete from transactions where id = $1`, id)
}

// --- row mapping ---

func getUser(ctx context.Context, q querier, sql string, arg any) (ledger.User, error) {
	var u ledger.User
	err := q.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Login, &u.IsAdmin, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.User{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (s *Store) getAccount(ctx context.Context, q querier, sql string, arg any) (ledger.Account, error) {
	a, err := s.scanAccount(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) getTransaction(ctx context.Context, q querier, sql string, arg any) (ledger.Transaction, error) {
	t, err := s.scanTransaction(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return t, err
}

func (s *Store) scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var minor int64
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &minor); err != nil {
		return ledger.Account{}, err
	}
	amt, err := s.amount(minor)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Amount = amt
	return a, nil
}

func (s *Store) scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var t ledger.Transaction
	var category string
	var minor int64
	var date time.Time
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &minor, &date); err != nil {
		return ledger.Transaction{}, err
	}
	amt, err := s.amount(minor)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Category = ledger.Category(category)
	t.Amount = amt
	t.Date = ledger.DateOf(date)
	return t, nil
}

func (s *Store) amount(minor int64) (money.Amount, error) {
	return ledger.AmountFromMinor(s.curr, minor)
}

func execOne(ctx context.Context, q querier, sql string, id int64) error {
	ct, err := q.Exec(ctx, sql, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// mapErr translates constraint violations into domain errors.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == "users_login_key" {
			return fmt.Errorf("login already taken: %w", errs.ErrDuplicateLogin)
		}
		return fmt.Errorf("%s: %w", pgErr.Message, errs.ErrConflict)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.Message, errs.ErrNotFound)
	case codeCheckViolation:
		return fmt.Errorf("%s: %w", pgErr.Message, errs.ErrInsufficientFunds)
	}
	return err
}
