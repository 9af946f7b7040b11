// Package stats aggregates per-user balance and spending figures.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/storage"
)

// DaysPerMonth is the average month length used for per-month averages.
const DaysPerMonth = 30.44

// Balances summarizes a user's accounts and transactions.
type Balances struct {
	UserID            int64
	UserName          string
	TotalAmount       money.Amount
	AccountCount      int
	TransactionsTotal money.Amount
	TransactionCount  int
	FirstDate         *time.Time
	LastDate          *time.Time
	AvgPerDay         float64
	AvgPerMonth       float64
}

// CategorySum is the summed amount of one category within a window.
type CategorySum struct {
	Category ledger.Category
	Amount   money.Amount
}

type Service interface {
	UserBalances(ctx context.Context, c authz.Caller, userID int64) (Balances, error)
	MonthlyCategorySpent(ctx context.Context, c authz.Caller, userID int64, month, year int) ([]CategorySum, error)
}

type service struct {
	repo storage.Reader
	curr string
	now  func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithNow overrides the clock that defines "today".
func WithNow(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(repo storage.Reader, curr string, opts ...Option) Service {
	s := &service{repo: repo, curr: curr, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UserBalances returns the balance statistics of userID (0 means the caller).
// Averages are zero when the user has no transactions.
func (s *service) UserBalances(ctx context.Context, c authz.Caller, userID int64) (Balances, error) {
	u, err := s.user(ctx, c, userID)
	if err != nil {
		return Balances{}, err
	}
	accs, err := s.repo.AccountsByUserID(ctx, u.ID)
	if err != nil {
		return Balances{}, err
	}
	txns, err := s.repo.TransactionsByUserID(ctx, u.ID)
	if err != nil {
		return Balances{}, err
	}

	var accMinor int64
	for _, a := range accs {
		accMinor += ledger.MinorUnits(a.Amount)
	}
	out := Balances{UserID: u.ID, UserName: u.Login, AccountCount: len(accs), TransactionCount: len(txns)}
	if out.TotalAmount, err = ledger.AmountFromMinor(s.curr, accMinor); err != nil {
		return Balances{}, err
	}

	var txMinor int64
	var first, last time.Time
	for i, t := range txns {
		txMinor += ledger.MinorUnits(t.Amount)
		d := ledger.DateOf(t.Date)
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	if out.TransactionsTotal, err = ledger.AmountFromMinor(s.curr, txMinor); err != nil {
		return Balances{}, err
	}
	if len(txns) == 0 {
		return out, nil
	}
	out.FirstDate, out.LastDate = &first, &last
	days := int(last.Sub(first).Hours()/24) + 1
	total := ledger.Float(out.TransactionsTotal)
	out.AvgPerDay = total / float64(days)
	out.AvgPerMonth = total / (float64(days) / DaysPerMonth)
	return out, nil
}

// MonthlyCategorySpent sums transactions per category from the first day of the month
// up to the end of the month or today, whichever comes first. Zero month or year mean
// the current one. Results are ordered by ascending sum.
func (s *service) MonthlyCategorySpent(ctx context.Context, c authz.Caller, userID int64, month, year int) ([]CategorySum, error) {
	if month < 0 || month > 12 {
		return nil, fmt.Errorf("month_trans must be between 1 and 12: %w", errs.ErrUnprocessable)
	}
	if year < 0 {
		return nil, fmt.Errorf("year_trans must be positive: %w", errs.ErrUnprocessable)
	}
	u, err := s.user(ctx, c, userID)
	if err != nil {
		return nil, err
	}
	from, to := Window(s.now(), month, year)
	txns, err := s.repo.TransactionsByUserID(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	sums := map[ledger.Category]int64{}
	for _, t := range txns {
		d := ledger.DateOf(t.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		sums[t.Category] += ledger.MinorUnits(t.Amount)
	}
	out := make([]CategorySum, 0, len(sums))
	for cat, minor := range sums {
		amt, err := ledger.AmountFromMinor(s.curr, minor)
		if err != nil {
			return nil, err
		}
		out = append(out, CategorySum{Category: cat, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := ledger.MinorUnits(out[i].Amount), ledger.MinorUnits(out[j].Amount)
		if mi != mj {
			return mi < mj
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// Window returns the inclusive date range [first of month, min(end of month, today)].
// The range is empty (to before from) for months that start after today.
func Window(now time.Time, month, year int) (time.Time, time.Time) {
	today := ledger.DateOf(now)
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = int(today.Month())
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	if today.Before(to) {
		to = today
	}
	return from, to
}

func (s *service) user(ctx context.Context, c authz.Caller, userID int64) (ledger.User, error) {
	u, err := s.repo.UserByID(ctx, authz.Self(c, userID))
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
