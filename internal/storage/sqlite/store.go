// Package sqlite implements storage.Store on an embedded SQLite database.
//
// The pool is capped at one connection, so a Tx owns the database until it commits
// or rolls back and balance checks never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/money"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

const dateLayout = "2006-01-02"

// Store wraps a sql.DB connection.
type Store struct {
	db   *sql.DB
	curr string
}

// Open opens (or creates) the database at path and runs migrations. Amounts are
// read back in curr.
func Open(ctx context.Context, path, curr string) (*Store, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	s := &Store{db: conn, curr: strings.ToUpper(curr)}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT 'Unnamed' CHECK (length(name) <= 15),
			amount_minor INTEGER NOT NULL DEFAULT 0 CHECK (amount_minor >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS accounts_user_id_idx ON accounts(user_id)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			amount_minor INTEGER NOT NULL,
			date TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_user_id_idx ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS transactions_account_id_idx ON transactions(account_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() { _ = s.db.Close() }

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const (
	userCols    = `id, login, is_admin, password_hash`
	accountCols = `id, user_id, name, amount_minor`
	txnCols     = `id, user_id, account_id, category, amount_minor, date`
)

// --- reads ---

func (s *Store) UserByID(ctx context.Context, id int64) (ledger.User, error) {
	return getUser(ctx, s.db, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

func (s *Store) UserByLogin(ctx context.Context, login string) (ledger.User, error) {
	return getUser(ctx, s.db, `SELECT `+userCols+` FROM users WHERE login = ?`, login)
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) AccountByID(ctx context.Context, id int64) (ledger.Account, error) {
	return s.getAccount(ctx, s.db, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY id ASC`)
}

// AccountsByUserID returns accounts for a user.
func (s *Store) AccountsByUserID(ctx context.Context, userID int64) ([]ledger.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountCols+` FROM accounts WHERE user_id = ? ORDER BY id ASC`, userID)
}

func (s *Store) TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error) {
	return s.getTransaction(ctx, s.db, id)
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+txnCols+` FROM transactions ORDER BY id ASC`)
}

// TransactionsByUserID returns all transactions for a user.
func (s *Store) TransactionsByUserID(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+txnCols+` FROM transactions WHERE user_id = ? ORDER BY id ASC`, userID)
}

func (s *Store) listAccounts(ctx context.Context, query string, args ...any) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := s.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- transactions ---

// BeginTx takes the only connection until Commit or Rollback.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, s: s}, nil
}

// Tx wraps a sql.Tx.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *Tx) UserByID(ctx context.Context, id int64) (ledger.User, error) {
	return getUser(ctx, t.tx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
}

func (t *Tx) UserByLogin(ctx context.Context, login string) (ledger.User, error) {
	return getUser(ctx, t.tx, `SELECT `+userCols+` FROM users WHERE login = ?`, login)
}

func (t *Tx) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (login, is_admin, password_hash) VALUES (?, ?, ?)`,
		u.Login, u.IsAdmin, u.PasswordHash,
	)
	if err != nil {
		return ledger.User{}, mapErr(err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (t *Tx) UpdateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET login = ?, is_admin = ?, password_hash = ? WHERE id = ?`,
		u.Login, u.IsAdmin, u.PasswordHash, u.ID,
	)
	if err != nil {
		return ledger.User{}, mapErr(err)
	}
	if err := expectOne(res); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (t *Tx) DeleteUser(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ?`, id); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (t *Tx) AccountByID(ctx context.Context, id int64) (ledger.Account, error) {
	return t.s.getAccount(ctx, t.tx, id)
}

func (t *Tx) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, amount_minor) VALUES (?, ?, ?)`,
		a.UserID, a.Name, ledger.MinorUnits(a.Amount),
	)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// UpdateAccount persists the name and balance of an account.
func (t *Tx) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET name = ?, amount_minor = ? WHERE id = ?`,
		a.Name, ledger.MinorUnits(a.Amount), a.ID,
	)
	if err != nil {
		return ledger.Account{}, mapErr(err)
	}
	if err := expectOne(res); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (t *Tx) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (t *Tx) TransactionByID(ctx context.Context, id int64) (ledger.Transaction, error) {
	return t.s.getTransaction(ctx, t.tx, id)
}

func (t *Tx) CreateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	tr.Date = ledger.DateOf(tr.Date)
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, account_id, category, amount_minor, date) VALUES (?, ?, ?, ?, ?)`,
		tr.UserID, tr.AccountID, string(tr.Category), ledger.MinorUnits(tr.Amount), tr.Date.Format(dateLayout),
	)
	if err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	if tr.ID, err = res.LastInsertId(); err != nil {
		return ledger.Transaction{}, err
	}
	return tr, nil
}

func (t *Tx) UpdateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	tr.Date = ledger.DateOf(tr.Date)
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET user_id = ?, account_id = ?, category = ?, amount_minor = ?, date = ? WHERE id = ?`,
		tr.UserID, tr.AccountID, string(tr.Category), ledger.MinorUnits(tr.Amount), tr.Date.Format(dateLayout), tr.ID,
	)
	if err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	if err := expectOne(res); err != nil {
		return ledger.Transaction{}, err
	}
	return tr, nil
}

func (t *Tx) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// --- row mapping ---

func getUser(ctx context.Context, q querier, query string, arg any) (ledger.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, errs.ErrNotFound
	}
	return u, err
}

func scanUser(row scanner) (ledger.User, error) {
	var u ledger.User
	if err := row.Scan(&u.ID, &u.Login, &u.IsAdmin, &u.PasswordHash); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

func (s *Store) getAccount(ctx context.Context, q querier, id int64) (ledger.Account, error) {
	a, err := s.scanAccount(q.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) getTransaction(ctx context.Context, q querier, id int64) (ledger.Transaction, error) {
	t, err := s.scanTransaction(q.QueryRowContext(ctx, `SELECT `+txnCols+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return t, err
}

func (s *Store) scanAccount(row scanner) (ledger.Account, error) {
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

func (s *Store) scanTransaction(row scanner) (ledger.Transaction, error) {
	var t ledger.Transaction
	var category, date string
	var minor int64
	if err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &minor, &date); err != nil {
		return ledger.Transaction{}, err
	}
	amt, err := s.amount(minor)
	if err != nil {
		return ledger.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Category = ledger.Category(category)
	t.Amount = amt
	t.Date = d
	return t, nil
}

func (s *Store) amount(minor int64) (money.Amount, error) {
	return ledger.AmountFromMinor(s.curr, minor)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// mapErr translates constraint violations into domain errors.
func mapErr(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Error()
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || strings.Contains(msg, "UNIQUE constraint failed"):
		if strings.Contains(msg, "users.login") {
			return fmt.Errorf("login already taken: %w", errs.ErrDuplicateLogin)
		}
		return fmt.Errorf("%s: %w", msg, errs.ErrConflict)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", msg, errs.ErrNotFound)
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK || strings.Contains(msg, "CHECK constraint failed"):
		if strings.Contains(msg, "amount_minor") {
			return fmt.Errorf("%s: %w", msg, errs.ErrInsufficientFunds)
		}
		return fmt.Errorf("%s: %w", msg, errs.ErrInvalid)
	}
	return err
}
