package dictionary

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/ledger"
)

func TestResolve_AutoPicksDefaultBySign(t *testing.T) {
	got, err := Resolve(ledger.CategoryAuto, 1500)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryOtherIncome, got)

	got, err = Resolve(ledger.CategoryAuto, -1)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryOtherExpenses, got)

	got, err = Resolve(ledger.CategoryAuto, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryOtherIncome, got)
}

func TestResolve_SignMismatch(t *testing.T) {
	_, err := Resolve(ledger.CategoryProducts, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidCategory))
	assert.Contains(t, err.Error(), "Salary, Bonus, Scholarship, Gift, Other income")

	_, err = Resolve(ledger.CategorySalary, -100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Products, Clothing, Subscriptions, Other expenses")
}

func TestResolve_CaseSensitive(t *testing.T) {
	_, err := Resolve(ledger.Category("products"), -100)
	assert.True(t, errors.Is(err, errs.ErrInvalidCategory))
	_, err = Resolve(ledger.Category("SALARY"), 100)
	assert.True(t, errors.Is(err, errs.ErrInvalidCategory))
}

func TestResolve_EveryCategoryAcceptedForItsDirection(t *testing.T) {
	for _, c := range CategoriesFor(nil) {
		units := int64(100)
		if c.Direction == DirectionExpense {
			units = -100
		}
		got, err := Resolve(c.Code, units)
		require.NoError(t, err, string(c.Code))
		assert.Equal(t, c.Code, got)
	}
}

func TestCategoriesFor_Filter(t *testing.T) {
	d := DirectionExpense
	list := CategoriesFor(&d)
	require.Len(t, list, 4)
	for _, c := range list {
		assert.Equal(t, DirectionExpense, c.Direction)
	}
	assert.Len(t, CategoriesFor(nil), 9)
	assert.False(t, strings.Contains(join(list), "Salary"))
}
