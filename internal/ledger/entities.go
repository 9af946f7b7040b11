package ledger

import (
	"time"

	"github.com/govalues/money"
)

// Category labels a transaction. The allowed values depend on the sign of the amount,
// see the dictionary package.
type Category string

const (
	// CategoryAuto asks the validator to pick the default category for the amount's sign.
	CategoryAuto Category = "auto"

	CategorySalary        Category = "Salary"
	CategoryBonus         Category = "Bonus"
	CategoryScholarship   Category = "Scholarship"
	CategoryGift          Category = "Gift"
	CategoryOtherIncome   Category = "Other income"
	CategoryProducts      Category = "Products"
	CategoryClothing      Category = "Clothing"
	CategorySubscriptions Category = "Subscriptions"
	CategoryOtherExpenses Category = "Other expenses"
)

// MaxAccountNameLen bounds Account.Name.
const MaxAccountNameLen = 15

// DefaultAccountName is used when an account is created without a name.
const DefaultAccountName = "Unnamed"

// User captures the owner of ledger data.
type User struct {
	ID           int64
	Login        string
	IsAdmin      bool
	PasswordHash string
}

// Account is a user-owned balance bucket. Amount is the running balance and never
// goes below zero.
type Account struct {
	ID     int64
	UserID int64
	Name   string
	Amount money.Amount
}

// Transaction is a signed balance change recorded against one account.
// Positive amounts are income, negative amounts are expenses.
type Transaction struct {
	ID        int64
	UserID    int64
	AccountID int64
	Category  Category
	Amount    money.Amount
	Date      time.Time
}

// DateOf truncates t to a calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
