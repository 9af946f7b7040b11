package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/govalues/money"
)

// Amounts travel as floats on the wire and are kept as money.Amount (minor units of
// the configured currency) everywhere else.

// Zero returns a zero amount in curr.
func Zero(curr string) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(strings.ToUpper(curr), 0)
}

// AmountFromFloat rounds f to the currency's minor units.
func AmountFromFloat(curr string, f float64) (money.Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return money.Amount{}, fmt.Errorf("amount must be a finite number")
	}
	zero, err := Zero(curr)
	if err != nil {
		return money.Amount{}, err
	}
	scale := zero.Curr().Scale()
	units := math.Round(f * math.Pow10(scale))
	if units > math.MaxInt64/2 || units < math.MinInt64/2 {
		return money.Amount{}, fmt.Errorf("amount out of range")
	}
	return money.NewAmountFromMinorUnits(zero.Curr().Code(), int64(units))
}

// AmountFromMinor builds an amount from stored minor units.
func AmountFromMinor(curr string, units int64) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(strings.ToUpper(curr), units)
}

// MinorUnits returns the amount in minor units of its currency.
func MinorUnits(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

// Float converts a to a float64 for JSON responses.
func Float(a money.Amount) float64 {
	return MinorToFloat(a.Curr().Scale(), MinorUnits(a))
}

// MinorToFloat converts minor units at the given scale to a float64.
func MinorToFloat(scale int, units int64) float64 {
	return float64(units) / math.Pow10(scale)
}
