package dictionary

import (
	"fmt"
	"strings"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
)

// Direction is the amount sign a category requires.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

type CategoryDef struct {
	Code      ledger.Category `json:"code"`
	Direction Direction       `json:"direction"`
	// Default marks the category picked for ledger.CategoryAuto.
	Default bool `json:"default"`
}

// curated is ordered; error messages list categories in this order.
var curated = []CategoryDef{
	{Code: ledger.CategorySalary, Direction: DirectionIncome},
	{Code: ledger.CategoryBonus, Direction: DirectionIncome},
	{Code: ledger.CategoryScholarship, Direction: DirectionIncome},
	{Code: ledger.CategoryGift, Direction: DirectionIncome},
	{Code: ledger.CategoryOtherIncome, Direction: DirectionIncome, Default: true},
	{Code: ledger.CategoryProducts, Direction: DirectionExpense},
	{Code: ledger.CategoryClothing, Direction: DirectionExpense},
	{Code: ledger.CategorySubscriptions, Direction: DirectionExpense},
	{Code: ledger.CategoryOtherExpenses, Direction: DirectionExpense, Default: true},
}

// DirectionOf maps an amount in minor units to the direction it requires.
// Zero is treated as income.
func DirectionOf(minorUnits int64) Direction {
	if minorUnits >= 0 {
		return DirectionIncome
	}
	return DirectionExpense
}

// CategoriesFor returns the curated categories, optionally filtered by direction.
func CategoriesFor(d *Direction) []CategoryDef {
	out := make([]CategoryDef, 0, len(curated))
	for _, c := range curated {
		if d != nil && c.Direction != *d {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Resolve validates category against the sign of the amount and returns the category
// to store. ledger.CategoryAuto resolves to the direction's default. Matching is exact.
func Resolve(category ledger.Category, minorUnits int64) (ledger.Category, error) {
	d := DirectionOf(minorUnits)
	allowed := CategoriesFor(&d)
	if category == ledger.CategoryAuto || category == "" {
		for _, c := range allowed {
			if c.Default {
				return c.Code, nil
			}
		}
	}
	for _, c := range allowed {
		if c.Code == category {
			return c.Code, nil
		}
	}
	return "", fmt.Errorf("category %q not found: for %s amount it can be: %s: %w", category, signWord(d), join(allowed), errs.ErrInvalidCategory)
}

func signWord(d Direction) string {
	if d == DirectionIncome {
		return "positive"
	}
	return "negative"
}

func join(defs []CategoryDef) string {
	names := make([]string, 0, len(defs))
	for _, c := range defs {
		names = append(names, string(c.Code))
	}
	return strings.Join(names, ", ")
}
